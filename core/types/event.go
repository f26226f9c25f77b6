package types

// Event is the flattened form of a contract event as appended to the event
// log. Attribute values are canonical strings (bech32 addresses, base-10
// integers).
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attribute returns the named attribute or the empty string.
func (e *Event) Attribute(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
