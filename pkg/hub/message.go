// Package hub fans messages out to websocket clients. One goroutine owns the
// client set; clients and broadcasters talk to it over channels.
package hub

import "encoding/json"

// Message is one text frame queued for every client, usually JSON.
type Message struct {
	Data []byte
}

// JSON encodes v into a message.
func JSON(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
