package services

import (
	"coachchat/internal/domain/message"
	"coachchat/internal/transport/rest"
)

func domainFromWire(msgs []rest.Message) []message.Message {
	out := make([]message.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Domain())
	}
	return out
}
