package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	recorder := NewRecorder()
	assert.Empty(t, recorder.Events())

	created := New(GroupCreated)
	created.GroupID = 1
	recorder.Emit(created)

	added := New(MemberAdded)
	added.GroupID = 1
	added.MemberCount = 1
	recorder.Emit(added)

	all := recorder.Events()
	require.Len(t, all, 2)
	assert.Equal(t, GroupCreated, all[0].Type)
	assert.Equal(t, MemberAdded, all[1].Type)
	assert.NotEmpty(t, all[0].ID)
	assert.NotEqual(t, all[0].ID, all[1].ID)

	byType := recorder.ByType(MemberAdded)
	require.Len(t, byType, 1)
	assert.Equal(t, uint32(1), byType[0].MemberCount)
	assert.Empty(t, recorder.ByType(NullifierUsed))
}

func TestMultiSinkFansOut(t *testing.T) {
	first := NewRecorder()
	second := NewRecorder()
	sink := MultiSink{first, second, LogSink{}}

	event := New(ProofVerified)
	event.GroupID = 7
	sink.Emit(event)

	require.Len(t, first.Events(), 1)
	require.Len(t, second.Events(), 1)
	assert.Equal(t, first.Events()[0].ID, second.Events()[0].ID)
}
