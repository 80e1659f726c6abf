package model

// UserInfo is the "who am I" record returned by the external auth service.
//
// We don't own its schema, so it is passed through to the frontend as-is
// instead of being mapped onto a struct that would silently drop fields.
type UserInfo map[string]any
