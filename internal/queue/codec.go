// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package queue

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/reqaudit/internal/audit"
)

const metadataLogType = "log_type"

// encode builds a message carrying rec. The record id doubles as the
// message id so JetStream can drop duplicate publishes.
func encode(logType audit.LogType, id string, rec any) (*message.Message, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", logType, err)
	}
	if id == "" {
		id = audit.NewID()
	}
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set(metadataLogType, string(logType))
	return msg, nil
}

func decodeRequest(msg *message.Message) (*audit.RequestRecord, error) {
	var rec audit.RequestRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal request record %s: %w", msg.UUID, err)
	}
	if rec.ID == "" {
		rec.ID = msg.UUID
	}
	if rec.Extra == nil {
		rec.Extra = map[string]any{}
	}
	return &rec, nil
}

func decodeAccess(msg *message.Message) (*audit.AccessRecord, error) {
	var rec audit.AccessRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal access record %s: %w", msg.UUID, err)
	}
	if rec.ID == "" {
		rec.ID = msg.UUID
	}
	if rec.Extra == nil {
		rec.Extra = map[string]any{}
	}
	return &rec, nil
}
