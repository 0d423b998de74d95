// Command node starts a sequencer node: the consensus tick loop, the
// periodic sync loop, and the HTTP surface, all three running until any
// one of them exits (spec.md §5).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tolelom/diseq/api"
	"github.com/tolelom/diseq/config"
	"github.com/tolelom/diseq/consensus"
	"github.com/tolelom/diseq/crypto"
	"github.com/tolelom/diseq/events"
	"github.com/tolelom/diseq/gossip"
	"github.com/tolelom/diseq/storage"
	"github.com/tolelom/diseq/store"
	"github.com/tolelom/diseq/syncer"
	"github.com/tolelom/diseq/trie"
	"github.com/tolelom/diseq/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "", "path to keystore file (empty: use the hardcoded dev keypair selected by LOCAL_VALIDATOR)")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	flag.Parse()

	password := os.Getenv("SEQUENCER_PASSWORD")
	if password == "" && *keyPath != "" {
		log.Println("WARNING: SEQUENCER_PASSWORD not set — keystore will use an empty password")
	}

	if *genKey {
		if *keyPath == "" {
			log.Fatal("genkey requires -key")
		}
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator identity): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *keyPath != "" {
		cfg.KeystorePath = *keyPath
	}

	localKey, err := cfg.LocalSigningKey(func(path string) (crypto.PrivateKey, error) {
		return wallet.LoadKey(path, password)
	})
	if err != nil {
		log.Fatalf("resolve validator key: %v", err)
	}

	validatorKeys, err := config.ValidatorKeys()
	if err != nil {
		log.Fatalf("validator committee: %v", err)
	}
	validators := make([]crypto.PublicKey, len(validatorKeys))
	for i, k := range validatorKeys {
		validators[i] = k.Public()
	}

	if err := os.MkdirAll(cfg.PathToDB, 0755); err != nil {
		log.Fatalf("mkdir path_to_db: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.PathToDB)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	blocks := store.NewBlockStore(db)
	pool := store.NewMessagePool(db)
	tr := trie.New(trie.NewNodeStore(db))

	if height, err := blocks.Height(); err != nil {
		log.Fatalf("read height: %v", err)
	} else if height == 0 {
		genesis := config.GenesisBlock(uint32(time.Now().Unix()))
		if err := blocks.Put(genesis); err != nil {
			log.Fatalf("commit genesis: %v", err)
		}
		log.Print("[Info] Genesis block committed")
	}

	round := consensus.NewRound(validators, localKey)
	g := gossip.New(cfg.APIHostWithPort, cfg.Peers, cfg.GossipProposalRetryLimitPerPeer)
	engine := consensus.NewEngine(round, blocks, pool, tr, g, cfg.RoundDuration, cfg.ClearingPhase, cfg.ConsensusThreshold)

	sync := syncer.New(cfg.APIHostWithPort, cfg.Peers, blocks, tr, round)

	emitter := events.NewEmitter()
	engine.SetEmitter(emitter)
	sync.SetEmitter(emitter)
	emitter.Subscribe(events.EventBlockCommitted, func(ev events.Event) {
		log.Printf("[Info] Locally committed block %d", ev.Height)
	})
	emitter.Subscribe(events.EventBlockSynced, func(ev events.Event) {
		log.Printf("[Info] Synced block %d from a peer", ev.Height)
	})

	server := api.New(blocks, pool, engine, round, tr)

	done := make(chan struct{})
	errCh := make(chan error, 3)

	go func() {
		engine.Run(2*time.Second, done)
		errCh <- fmt.Errorf("consensus loop exited")
	}()
	go func() {
		sync.Run(120*time.Second, done)
		errCh <- fmt.Errorf("sync loop exited")
	}()
	go func() {
		errCh <- server.ListenAndServe(cfg.APIHostWithPort)
	}()

	log.Printf("[Info] Node listening on %s (validator #%d)", cfg.APIHostWithPort, cfg.LocalValidator)
	log.Fatalf("[Error] %v", <-errCh)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults with environment overrides.", path)
			return config.Load("")
		}
		return nil, err
	}
	return cfg, nil
}
