// Package gossip fans proposals and commitments out to peer nodes
// (spec.md §4.7): proposal broadcast retries per peer until it sees the
// exact "processed" acknowledgement, commitment broadcast is a single
// best-effort shot, and the local node always excludes itself.
package gossip

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tolelom/diseq/types"
)

// okResponse is the literal acknowledgement sendProposalWithRetry retries
// against (spec.md §6: "/propose must return exactly the literal string
// [Ok] Block was processed; gossip retry-loops key on it.").
const okResponse = "[Ok] Block was processed"

// Gossiper broadcasts proposals and commitments to a fixed peer set,
// skipping itself.
type Gossiper struct {
	self  string
	peers []string

	proposalClient *retryablehttp.Client
	commitClient   *http.Client

	retryLimit int
}

// New creates a Gossiper advertising as self (its own host:port, used for
// self-exclusion) with the given static peer list.
func New(self string, peers []string, retryLimit int) *Gossiper {
	proposalClient := retryablehttp.NewClient()
	proposalClient.RetryMax = 0 // this package owns its own retry loop, keyed on response body
	proposalClient.Logger = nil
	proposalClient.HTTPClient.Timeout = 5 * time.Second

	return &Gossiper{
		self:           self,
		peers:          peers,
		proposalClient: proposalClient,
		commitClient:   &http.Client{Timeout: 30 * time.Second},
		retryLimit:     retryLimit,
	}
}

func (g *Gossiper) skipSelf(peer string) bool {
	return peer == g.self
}

// BroadcastProposal gossips block to every peer except self. Each peer
// gets its own fire-and-forget goroutine; the caller never waits on these.
func (g *Gossiper) BroadcastProposal(block *types.Block, lastBlockTS uint32) {
	body, err := json.Marshal(block)
	if err != nil {
		log.Printf("[gossip] encode proposal: %v", err)
		return
	}
	for _, peer := range g.peers {
		if g.skipSelf(peer) {
			continue
		}
		peer := peer
		go g.sendProposalWithRetry(peer, body)
	}
}

func (g *Gossiper) sendProposalWithRetry(peer string, body []byte) {
	url := fmt.Sprintf("http://%s/propose", peer)
	for attempt := 0; attempt <= g.retryLimit; attempt++ {
		req, err := retryablehttp.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
			resp, err := g.proposalClient.Do(req)
			if err == nil {
				text, readErr := readAll(resp)
				resp.Body.Close()
				if readErr == nil && text == okResponse {
					log.Printf("[Info] Block was successfully sent to peer: %s", peer)
					return
				}
				log.Printf("[Error] Failed to gossip to peer: %s, response: %s", peer, text)
			} else {
				log.Printf("[Error] Failed to send request to peer: %s: %v", peer, err)
			}
		}
		if attempt < g.retryLimit {
			time.Sleep(time.Second)
		}
	}
}

// BroadcastCommitment gossips c to every peer except self, single
// best-effort shot with no retry.
func (g *Gossiper) BroadcastCommitment(c types.ConsensusCommitment) {
	body, err := json.Marshal(c)
	if err != nil {
		log.Printf("[gossip] encode commitment: %v", err)
		return
	}
	for _, peer := range g.peers {
		if g.skipSelf(peer) {
			continue
		}
		url := fmt.Sprintf("http://%s/commit", peer)
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := g.commitClient.Do(req)
		if err != nil {
			log.Printf("[Warning] Failed to send Consensus Commitment to peer: %s, Proceeding with other peers, reason: %v", peer, err)
			continue
		}
		resp.Body.Close()
		log.Printf("[Info] Successfully sent consensus commitment to peer: %s", peer)
	}
}

func readAll(resp *http.Response) (string, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	return buf.String(), nil
}
