// Package config loads node configuration from a JSON file with
// environment-variable overrides, and resolves the local validator's
// signing key.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tolelom/diseq/crypto"
)

// devValidatorKeys are four hardcoded secp256k1 private keys for local
// multi-node testing, selected by LOCAL_VALIDATOR when no keystore file
// is configured (spec.md §6).
var devValidatorKeys = [4]string{
	"d06e82f151be2c29b013b22003d386c7c1c8ee65c87813a95c54163ad9e2f085",
	"76d1eb2466820df95464cddee10057554139c61513599ab6e1d7874e716476d4",
	"6f8ba7c420edfd93060cb29e2b211dbbde75482d82a16569e092ff7af6b0cd65",
	"c73e703d222e1a556e41ad1eeb658098a3f24d4cd315aac78a4454da8c7457b9",
}

// Config holds all node configuration: the fixed validator committee, the
// round timing constants, and the network surface this node advertises.
type Config struct {
	APIHostWithPort string `json:"api_host_with_port"`
	LocalValidator  int    `json:"local_validator"`
	PathToDB        string `json:"path_to_db"`

	RoundDuration      uint32 `json:"round_duration"`
	ClearingPhase      uint32 `json:"clearing_phase"`
	ConsensusThreshold int    `json:"consensus_threshold"`

	GossipProposalRetryLimitPerPeer int `json:"gossip_proposal_retry_limit_per_peer"`

	Peers []string `json:"peers"`

	KeystorePath string `json:"keystore_path,omitempty"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		APIHostWithPort:                 "127.0.0.1:8080",
		LocalValidator:                  0,
		PathToDB:                        "./data",
		RoundDuration:                   10,
		ClearingPhase:                   2,
		ConsensusThreshold:              1,
		GossipProposalRetryLimitPerPeer: 3,
		Peers:                           []string{"127.0.0.1:8080"},
	}
}

// Load reads a JSON config file from path, then applies the environment
// overrides spec.md §6 names, and finally validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("API_HOST_WITH_PORT"); v != "" {
		c.APIHostWithPort = v
	}
	if v := os.Getenv("LOCAL_VALIDATOR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LocalValidator = n
		}
	}
	if v := os.Getenv("PATH_TO_DB"); v != "" {
		c.PathToDB = v
	}
	if v := os.Getenv("ROUND_DURATION"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.RoundDuration = uint32(n)
		}
	}
	if v := os.Getenv("CLEARING_PHASE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.ClearingPhase = uint32(n)
		}
	}
	if v := os.Getenv("CONSENSUS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ConsensusThreshold = n
		}
	}
	if v := os.Getenv("GOSSIP_PROPOSAL_RETRY_LIMIT_PER_PEER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GossipProposalRetryLimitPerPeer = n
		}
	}
	if v := os.Getenv("PEERS"); v != "" {
		c.Peers = strings.Split(v, ",")
	}
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.APIHostWithPort == "" {
		return fmt.Errorf("api_host_with_port must not be empty")
	}
	if c.PathToDB == "" {
		return fmt.Errorf("path_to_db must not be empty")
	}
	if c.LocalValidator < 0 || c.LocalValidator >= len(devValidatorKeys) {
		return fmt.Errorf("local_validator must be 0-%d, got %d", len(devValidatorKeys)-1, c.LocalValidator)
	}
	if c.RoundDuration == 0 {
		return fmt.Errorf("round_duration must be positive")
	}
	if c.ClearingPhase == 0 || c.ClearingPhase >= c.RoundDuration {
		return fmt.Errorf("clearing_phase must be positive and less than round_duration")
	}
	if c.ConsensusThreshold <= 0 {
		return fmt.Errorf("consensus_threshold must be positive")
	}
	if len(c.Peers) == 0 {
		return fmt.Errorf("peers must not be empty")
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ValidatorKeys resolves the fixed four-member committee's signing keys
// in committee order, for use by CommittingValidator/Round.
func ValidatorKeys() ([]crypto.PrivateKey, error) {
	keys := make([]crypto.PrivateKey, len(devValidatorKeys))
	for i, hexKey := range devValidatorKeys {
		priv, err := crypto.PrivKeyFromHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("config: decode dev validator %d: %w", i, err)
		}
		keys[i] = priv
	}
	return keys, nil
}

// LocalSigningKey resolves this node's own signing key: from the
// configured keystore if set, else the hardcoded dev keypair selected by
// LocalValidator.
func (c *Config) LocalSigningKey(unlock func(path string) (crypto.PrivateKey, error)) (crypto.PrivateKey, error) {
	if c.KeystorePath != "" {
		return unlock(c.KeystorePath)
	}
	keys, err := ValidatorKeys()
	if err != nil {
		return crypto.PrivateKey{}, err
	}
	return keys[c.LocalValidator], nil
}
