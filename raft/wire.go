package raft

import "encoding/json"

// Kind discriminates the wire shape of a Raft RPC payload.
type Kind string

const (
	KindAppendEntries Kind = "APPEND_ENTRIES"
	KindRequestVote   Kind = "REQUEST_VOTE"
	KindResult        Kind = "RESULT"
	KindClientEntry   Kind = "CLIENT_ENTRY"
)

type envelope struct {
	Kind Kind   `json:"kind"`
	UUID string `json:"uuid"`
}

type appendEntriesWire struct {
	Kind         Kind       `json:"kind"`
	UUID         string     `json:"uuid"`
	Term         int        `json:"term"`
	LeaderID     int        `json:"leader_id"`
	PrevLogIndex int        `json:"prev_log_index"`
	PrevLogTerm  int        `json:"prev_log_term"`
	Entries      []LogEntry `json:"entries"`
	LeaderCommit int        `json:"leader_commit"`
}

type requestVoteWire struct {
	Kind         Kind   `json:"kind"`
	UUID         string `json:"uuid"`
	Term         int    `json:"term"`
	CandidateID  int    `json:"candidate_id"`
	LastLogIndex int    `json:"last_log_index"`
	LastLogTerm  int    `json:"last_log_term"`
}

type resultWire struct {
	Kind         Kind   `json:"kind"`
	UUID         string `json:"uuid"`
	SourceID     int    `json:"source_id"`
	Term         int    `json:"term"`
	LastLogIndex int    `json:"last_log_index"`
	Success      bool   `json:"success"`
}

type clientEntryWire struct {
	Kind    Kind   `json:"kind"`
	UUID    string `json:"uuid"`
	Payload string `json:"payload"`
}

// EncodeAppendEntries renders an AppendEntriesArgs into its wire form.
func EncodeAppendEntries(a AppendEntriesArgs) ([]byte, error) {
	return json.Marshal(appendEntriesWire{
		Kind: KindAppendEntries, UUID: a.UUID, Term: a.Term, LeaderID: a.LeaderID,
		PrevLogIndex: a.PrevLogIndex, PrevLogTerm: a.PrevLogTerm,
		Entries: a.Entries, LeaderCommit: a.LeaderCommit,
	})
}

// EncodeRequestVote renders a RequestVoteArgs into its wire form.
func EncodeRequestVote(a RequestVoteArgs) ([]byte, error) {
	return json.Marshal(requestVoteWire{
		Kind: KindRequestVote, UUID: a.UUID, Term: a.Term, CandidateID: a.CandidateID,
		LastLogIndex: a.LastLogIndex, LastLogTerm: a.LastLogTerm,
	})
}

// EncodeResult renders a Result into its wire form.
func EncodeResult(r Result) ([]byte, error) {
	return json.Marshal(resultWire{
		Kind: KindResult, UUID: r.UUID, SourceID: r.SourceID, Term: r.Term,
		LastLogIndex: r.LastLogIndex, Success: r.Success,
	})
}

// EncodeClientEntry renders a ClientEntryArgs into its wire form.
func EncodeClientEntry(a ClientEntryArgs) ([]byte, error) {
	return json.Marshal(clientEntryWire{Kind: KindClientEntry, UUID: a.UUID, Payload: a.Payload})
}

// Decode attempts to parse data as one of the four Raft RPC payload kinds.
// It never panics; a malformed payload or unrecognized kind yields
// (nil, false) so the dispatcher can fall through to the crypto codec.
func Decode(data []byte) (interface{}, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}

	switch env.Kind {
	case KindAppendEntries:
		var w appendEntriesWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, false
		}
		return AppendEntriesArgs{
			UUID: w.UUID, Term: w.Term, LeaderID: w.LeaderID,
			PrevLogIndex: w.PrevLogIndex, PrevLogTerm: w.PrevLogTerm,
			Entries: w.Entries, LeaderCommit: w.LeaderCommit,
		}, true

	case KindRequestVote:
		var w requestVoteWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, false
		}
		return RequestVoteArgs{
			UUID: w.UUID, Term: w.Term, CandidateID: w.CandidateID,
			LastLogIndex: w.LastLogIndex, LastLogTerm: w.LastLogTerm,
		}, true

	case KindResult:
		var w resultWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, false
		}
		return Result{
			UUID: w.UUID, SourceID: w.SourceID, Term: w.Term,
			LastLogIndex: w.LastLogIndex, Success: w.Success,
		}, true

	case KindClientEntry:
		var w clientEntryWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, false
		}
		return ClientEntryArgs{UUID: w.UUID, Payload: w.Payload}, true

	default:
		return nil, false
	}
}
