// Copyright (c) 2026 StakeMesh
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package snapshot ingests closed proposals and their votes from the
// governance hub's GraphQL API. It validates shapes at the boundary and
// decodes the hub's polymorphic choice encoding, so everything downstream
// works with well-formed governance records.
package snapshot

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/stakemesh/voterewards/governance"
	"github.com/stakemesh/voterewards/pkg/log"
)

var (
	// ErrProposalNotFound indicates the hub has no proposal with the id.
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrProposalOpen indicates the proposal has not closed yet.
	ErrProposalOpen = errors.New("proposal still open")
	// ErrMalformedResponse indicates a hub response that does not match the
	// expected shape.
	ErrMalformedResponse = errors.New("malformed hub response")
)

// Config is the hub client config.
type Config struct {
	// HubURL is the GraphQL endpoint of the governance hub.
	HubURL string `yaml:"hubURL"`
	// PageSize is the number of votes fetched per page.
	PageSize int `yaml:"pageSize"`
	// Timeout bounds one hub round-trip.
	Timeout time.Duration `yaml:"timeout"`
	// RetryCount is the number of resty-level retries per request.
	RetryCount int `yaml:"retryCount"`
}

// DefaultConfig is the default hub client config.
var DefaultConfig = Config{
	HubURL:     "https://hub.snapshot.org/graphql",
	PageSize:   1000,
	Timeout:    30 * time.Second,
	RetryCount: 3,
}

// Client fetches proposals and votes from the governance hub.
type Client struct {
	http     *resty.Client
	pageSize int
}

// NewClient creates a hub client.
func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig.PageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	httpClient := resty.New().
		SetBaseURL(cfg.HubURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient, pageSize: cfg.PageSize}
}

const _proposalQuery = `query ($id: String!) {
  proposal(id: $id) {
    id
    space { id }
    choices
    snapshot
    start
    end
    state
  }
}`

const _votesQuery = `query ($proposal: String!, $first: Int!, $skip: Int!) {
  votes(first: $first, skip: $skip, where: { proposal: $proposal }, orderBy: "created", orderDirection: asc) {
    voter
    choice
    vp
  }
}`

func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}) (gjson.Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"query": query, "variables": variables}).
		Post("")
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "hub request failed")
	}
	if resp.IsError() {
		return gjson.Result{}, errors.Errorf("hub returned status %d: %s", resp.StatusCode(), resp.String())
	}
	body := resp.String()
	if errs := gjson.Get(body, "errors"); errs.Exists() {
		return gjson.Result{}, errors.Wrapf(ErrMalformedResponse, "hub errors: %s", errs.Raw)
	}
	return gjson.Get(body, "data"), nil
}

// FetchProposal fetches a closed proposal by id. An open proposal is an
// error: rewards are only attributed after voting ends.
func (c *Client) FetchProposal(ctx context.Context, id string) (*governance.Proposal, error) {
	data, err := c.query(ctx, _proposalQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	raw := data.Get("proposal")
	if !raw.Exists() || raw.Type == gjson.Null {
		return nil, errors.Wrapf(ErrProposalNotFound, "%s", id)
	}
	if state := raw.Get("state").String(); state != "closed" {
		return nil, errors.Wrapf(ErrProposalOpen, "proposal %s is %s", id, state)
	}
	snapshotBlock, err := strconv.ParseUint(raw.Get("snapshot").String(), 10, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "bad snapshot %q", raw.Get("snapshot").String())
	}
	var choices []string
	for _, choice := range raw.Get("choices").Array() {
		choices = append(choices, choice.String())
	}
	proposal := &governance.Proposal{
		ID:            raw.Get("id").String(),
		Space:         raw.Get("space.id").String(),
		Choices:       choices,
		SnapshotBlock: snapshotBlock,
		Start:         raw.Get("start").Int(),
		End:           raw.Get("end").Int(),
	}
	if err := proposal.Validate(); err != nil {
		return nil, err
	}
	return proposal, nil
}

// FetchVotes fetches the proposal's full vote list, paging until a short
// page. Votes with a malformed choice encoding are rejected, not skipped.
func (c *Client) FetchVotes(ctx context.Context, proposal *governance.Proposal) ([]*governance.Vote, error) {
	var votes []*governance.Vote
	for skip := 0; ; skip += c.pageSize {
		data, err := c.query(ctx, _votesQuery, map[string]interface{}{
			"proposal": proposal.ID,
			"first":    c.pageSize,
			"skip":     skip,
		})
		if err != nil {
			return nil, err
		}
		page := data.Get("votes").Array()
		for _, raw := range page {
			vote, err := decodeVote(raw, proposal)
			if err != nil {
				return nil, err
			}
			votes = append(votes, vote)
		}
		if len(page) < c.pageSize {
			break
		}
	}
	log.L().Info("fetched votes from hub",
		zap.String("proposal", proposal.ID),
		zap.Int("votes", len(votes)))
	return votes, nil
}

// decodeVote decodes one hub vote record. The choice field is polymorphic: a
// bare number is a single full-weight choice, an object maps choice ids to
// raw weights.
func decodeVote(raw gjson.Result, proposal *governance.Proposal) (*governance.Vote, error) {
	voter := raw.Get("voter").String()
	if !common.IsHexAddress(voter) {
		return nil, errors.Wrapf(ErrMalformedResponse, "bad voter address %q", voter)
	}
	choices := make(map[int]uint64)
	choice := raw.Get("choice")
	switch {
	case choice.Type == gjson.Number:
		choices[int(choice.Int())] = 1
	case choice.IsObject():
		var decodeErr error
		choice.ForEach(func(key, value gjson.Result) bool {
			id, err := strconv.Atoi(key.String())
			if err != nil || value.Type != gjson.Number {
				decodeErr = errors.Wrapf(ErrMalformedResponse, "bad choice entry %q: %s", key.String(), value.Raw)
				return false
			}
			choices[id] = value.Uint()
			return true
		})
		if decodeErr != nil {
			return nil, decodeErr
		}
	default:
		return nil, errors.Wrapf(ErrMalformedResponse, "unsupported choice encoding: %s", choice.Raw)
	}
	vote := &governance.Vote{
		Voter:       common.HexToAddress(voter),
		Choices:     choices,
		VotingPower: raw.Get("vp").Float(),
	}
	if err := vote.Validate(proposal); err != nil {
		return nil, err
	}
	return vote, nil
}
