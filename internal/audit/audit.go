// Package audit records the commands the daemon handles.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/store"
)

// Writer writes command audit records.
type Writer struct {
	store *store.Store
}

// NewWriter creates a new audit writer.
func NewWriter(s *store.Store) *Writer {
	return &Writer{store: s}
}

// Record writes an audit entry for a command.
func (w *Writer) Record(action string, inputs interface{}, outcome, details string) (*models.AuditEntry, error) {
	return w.store.WriteAudit(action, hashInputs(inputs), outcome, details)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
