package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTallyVotes_TieBreakFirstVote(t *testing.T) {
	now := time.Now()
	session := &VotingSession{
		Votes: map[string]Vote{
			"agent-a": {OptionID: "approve", Weight: 1.0, CastAt: now},
			"agent-b": {OptionID: "reject", Weight: 1.0, CastAt: now.Add(time.Second)},
		},
	}
	result := tallyVotes(session, VotingRules{TieBreaker: TieBreakFirstVote})
	assert.Equal(t, "approve", result.WinningOption)
	assert.True(t, result.TieBroken)
	assert.False(t, result.NoDecision)
}

func TestTallyVotes_NoVotesIsNoDecision(t *testing.T) {
	session := &VotingSession{Votes: map[string]Vote{}}
	result := tallyVotes(session, VotingRules{})
	assert.True(t, result.NoDecision)
	assert.Empty(t, result.WinningOption)
}
