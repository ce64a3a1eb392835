package config

import (
	"flag"
	"fmt"
	"strings"
	"time"
)

type CoordinatorConfig struct {
	Port        string
	CallTimeout time.Duration
	TxnTimeout  time.Duration

	// Participants seeds the directory at startup, id -> address.
	Participants map[string]string
}

func NewCoordinatorConfig() (*CoordinatorConfig, error) {
	port := flag.String("port", "50050", "listen port")
	callTimeout := flag.Duration("call-timeout", 5*time.Second, "timeout per participant call")
	txnTimeout := flag.Duration("txn-timeout", 30*time.Second, "transaction-wide deadline")
	participants := flag.String("participants", "", "seed participants as comma separated id=host:port pairs")
	flag.Parse()

	seeds, err := parseParticipants(*participants)
	if err != nil {
		return nil, err
	}

	return &CoordinatorConfig{
		Port:         *port,
		CallTimeout:  *callTimeout,
		TxnTimeout:   *txnTimeout,
		Participants: seeds,
	}, nil
}

type ParticipantConfig struct {
	ID   string
	Port string

	// DataDir selects the Bolt-backed resource store; empty keeps resources
	// in memory.
	DataDir     string
	LockTimeout time.Duration
}

func NewParticipantConfig() *ParticipantConfig {
	id := flag.String("id", "participant1", "participant id")
	port := flag.String("port", "50051", "listen port")
	dataDir := flag.String("data-dir", "", "directory for the durable resource store (empty = in-memory)")
	lockTimeout := flag.Duration("lock-timeout", 30*time.Second, "resource lock expiry")
	flag.Parse()

	return &ParticipantConfig{
		ID:          *id,
		Port:        *port,
		DataDir:     *dataDir,
		LockTimeout: *lockTimeout,
	}
}

func parseParticipants(raw string) (map[string]string, error) {
	seeds := make(map[string]string)
	if raw == "" {
		return seeds, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		id, address, ok := strings.Cut(pair, "=")
		if !ok || id == "" || address == "" {
			return nil, fmt.Errorf("malformed participant entry %q, want id=host:port", pair)
		}
		seeds[id] = address
	}
	return seeds, nil
}
