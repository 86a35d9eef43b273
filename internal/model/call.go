package model

// RawCall is the input to the Enricher: one semantic call made by
// application code, before identity/context/messageId are attached (§3).
type RawCall interface {
	isRawCall()
	// Kind returns the wire "type" discriminator for this call.
	Kind() string
}

// Track records an arbitrary named event with optional properties.
type Track struct {
	Event      string
	Properties Fields
	// Timestamp, if non-zero, is used verbatim instead of the enrichment
	// clock (§4.5 "accept a caller-provided timestamp if present").
	Timestamp string
}

// Identify associates the current anonymous identity with a known userId.
type Identify struct {
	UserID    string
	Traits    Fields
	Timestamp string
}

// Group associates the current identity with a groupId.
type Group struct {
	GroupID   string
	Traits    Fields
	Timestamp string
}

// Screen records a screen view.
type Screen struct {
	Name       string
	Properties Fields
	Timestamp  string
}

// Page records a page view.
type Page struct {
	Name       string
	Properties Fields
	Timestamp  string
}

// Alias reassigns the current userId to a new one.
type Alias struct {
	NewUserID string
	Timestamp string
}

func (Track) isRawCall()    {}
func (Identify) isRawCall() {}
func (Group) isRawCall()    {}
func (Screen) isRawCall()   {}
func (Page) isRawCall()     {}
func (Alias) isRawCall()    {}

func (Track) Kind() string    { return "track" }
func (Identify) Kind() string { return "identify" }
func (Group) Kind() string    { return "group" }
func (Screen) Kind() string   { return "screen" }
func (Page) Kind() string     { return "page" }
func (Alias) Kind() string    { return "alias" }
