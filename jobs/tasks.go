package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerflow/internal/imports"
)

const (
	// QueueImports is the default queue carrying import batches.
	QueueImports = "imports"
	// TaskImportCSV materialises the rows of one uploaded batch.
	TaskImportCSV = "imports:csv"
	// TaskImportSweep republishes batches stuck in the uploaded state.
	TaskImportSweep = "imports:sweep"
)

// NewImportTask encodes msg as an import task.
func NewImportTask(msg imports.Message, opts ...asynq.Option) (*asynq.Task, error) {
	if msg.BatchID == uuid.Nil || msg.ClientID == uuid.Nil {
		return nil, errors.New("jobs: import message requires batch and client ids")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportCSV, data, opts...), nil
}

// DecodeImportMessage parses an import task payload.
func DecodeImportMessage(payload []byte) (imports.Message, error) {
	var msg imports.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return imports.Message{}, fmt.Errorf("jobs: decode import message: %w", err)
	}
	if msg.BatchID == uuid.Nil || msg.ClientID == uuid.Nil {
		return imports.Message{}, errors.New("jobs: import message missing batch or client id")
	}
	return msg, nil
}

// SweepPayload configures a sweep run.
type SweepPayload struct {
	AgeSeconds int `json:"ageSeconds"`
	Limit      int `json:"limit"`
}

// NewImportSweepTask constructs the periodic sweep task.
func NewImportSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportSweep, data), nil
}
