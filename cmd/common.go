package cmd

import (
	"github.com/snapmatch/snapmatch/internal/config"
	"github.com/snapmatch/snapmatch/internal/recognition"
	"github.com/snapmatch/snapmatch/internal/store"
)

// openStore opens the identity database described by the config, with the
// audit log attached when one is configured.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Store.AuditLog != "" {
		st = st.WithAuditLog(cfg.Store.AuditLog)
	}
	return st, nil
}

func newRecognizer(cfg *config.Config) recognition.Recognizer {
	return recognition.NewRekognition(cfg.AWS.Region, cfg.AWS.Collection)
}
