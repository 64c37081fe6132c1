// Package signaling is the client side of the rendezvous relay that peers use
// to exchange descriptions and candidates before a direct link exists.
package signaling

// Message types relayed by the server.
const (
	TypeHello      = "Hello"
	TypeBye        = "Bye"
	TypeConnect    = "Connect"
	TypeCandidates = "Candidates"
)

// Message is the JSON envelope of every signaling message. The server fills
// Sender on relay.
type Message struct {
	Type        string   `json:"type"`
	Token       string   `json:"token,omitempty"`
	Sender      string   `json:"sender,omitempty"`
	Dst         string   `json:"dst,omitempty"`
	Description string   `json:"description,omitempty"`
	Candidates  []string `json:"candidates,omitempty"`
}

// Handler receives relayed messages from other participants.
type Handler interface {
	OnHello(sender string)
	OnBye(sender string)
	OnConnect(sender, description string)
	OnCandidates(sender string, candidates []string)
}
