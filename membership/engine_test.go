package membership

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limitlxx/kirito-sdk-sub003/events"
)

var (
	admin    = big.NewInt(0xA11CE)
	stranger = big.NewInt(0xB0B)
)

func newTestEngine(opts ...Option) (*Engine, *events.Recorder) {
	recorder := events.NewRecorder()
	opts = append(opts, WithSink(recorder))
	return New(opts...), recorder
}

func TestCreateGroupExactlyOnce(t *testing.T) {
	engine, recorder := newTestEngine()

	require.NoError(t, engine.CreateGroup(1, admin))
	err := engine.CreateGroup(1, stranger)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// The failed second create must not touch the stored admin.
	assert.Equal(t, 0, engine.GroupAdmin(1).Cmp(admin))
	assert.Len(t, recorder.ByType(events.GroupCreated), 1)
}

func TestCreateGroupRejectsZeroAdmin(t *testing.T) {
	engine, _ := newTestEngine()

	assert.Error(t, engine.CreateGroup(1, big.NewInt(0)))
	assert.Error(t, engine.CreateGroup(1, nil))
	assert.Nil(t, engine.GroupAdmin(1))
}

func TestUnknownGroupReadsReturnSentinels(t *testing.T) {
	engine, _ := newTestEngine()

	assert.Nil(t, engine.GroupAdmin(99))
	assert.Equal(t, uint32(0), engine.GroupSize(99))
	assert.Equal(t, 0, engine.MerkleRoot(99).Sign())
	assert.False(t, engine.IsMember(99, big.NewInt(5)))
	assert.Nil(t, engine.Members(99))
}

func TestSetGroupAdmin(t *testing.T) {
	engine, _ := newTestEngine()
	require.NoError(t, engine.CreateGroup(1, admin))

	t.Run("stranger is rejected", func(t *testing.T) {
		err := engine.SetGroupAdmin(stranger, 1, stranger)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, 0, engine.GroupAdmin(1).Cmp(admin))
	})

	t.Run("unknown group", func(t *testing.T) {
		err := engine.SetGroupAdmin(admin, 2, stranger)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("admin hands over", func(t *testing.T) {
		require.NoError(t, engine.SetGroupAdmin(admin, 1, stranger))
		assert.Equal(t, 0, engine.GroupAdmin(1).Cmp(stranger))

		// The previous admin lost its rights with the handover.
		err := engine.SetGroupAdmin(admin, 1, admin)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestOwnerOverridesGroupAdmin(t *testing.T) {
	owner := big.NewInt(0x0D0)
	engine, _ := newTestEngine(WithOwner(owner))
	require.NoError(t, engine.CreateGroup(1, admin))

	require.NoError(t, engine.SetGroupAdmin(owner, 1, stranger))
	assert.Equal(t, 0, engine.GroupAdmin(1).Cmp(stranger))

	require.NoError(t, engine.AddMember(owner, 1, big.NewInt(77)))
	assert.True(t, engine.IsMember(1, big.NewInt(77)))
}

func TestAddMember(t *testing.T) {
	engine, recorder := newTestEngine()
	require.NoError(t, engine.CreateGroup(1, admin))

	emptyRoot := engine.MerkleRoot(1)
	require.NoError(t, engine.AddMember(admin, 1, big.NewInt(101)))

	assert.Equal(t, uint32(1), engine.GroupSize(1))
	assert.True(t, engine.IsMember(1, big.NewInt(101)))
	assert.NotEqual(t, 0, engine.MerkleRoot(1).Cmp(emptyRoot))

	added := recorder.ByType(events.MemberAdded)
	require.Len(t, added, 1)
	assert.Equal(t, uint32(1), added[0].MemberCount)

	t.Run("duplicate rejected", func(t *testing.T) {
		err := engine.AddMember(admin, 1, big.NewInt(101))
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Equal(t, uint32(1), engine.GroupSize(1))
	})

	t.Run("zero commitment rejected", func(t *testing.T) {
		assert.Error(t, engine.AddMember(admin, 1, big.NewInt(0)))
	})

	t.Run("stranger rejected", func(t *testing.T) {
		err := engine.AddMember(stranger, 1, big.NewInt(102))
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.False(t, engine.IsMember(1, big.NewInt(102)))
	})

	t.Run("unknown group rejected", func(t *testing.T) {
		err := engine.AddMember(admin, 7, big.NewInt(103))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAddMemberRootMatchesComputeRoot(t *testing.T) {
	engine, _ := newTestEngine()
	require.NoError(t, engine.CreateGroup(1, admin))

	commitments := []*big.Int{big.NewInt(5), big.NewInt(6), big.NewInt(7)}
	for _, c := range commitments {
		require.NoError(t, engine.AddMember(admin, 1, c))
	}

	expected, err := ComputeRoot(commitments)
	require.NoError(t, err)
	assert.Equal(t, 0, engine.MerkleRoot(1).Cmp(expected))
}

func TestRemoveMemberSwapWithLast(t *testing.T) {
	engine, _ := newTestEngine()
	require.NoError(t, engine.CreateGroup(1, admin))

	for _, c := range []int64{10, 20, 30} {
		require.NoError(t, engine.AddMember(admin, 1, big.NewInt(c)))
	}

	// Removing the first member moves the last one into its slot.
	require.NoError(t, engine.RemoveMember(admin, 1, big.NewInt(10)))

	assert.Equal(t, uint32(2), engine.GroupSize(1))
	assert.False(t, engine.IsMember(1, big.NewInt(10)))
	assert.True(t, engine.IsMember(1, big.NewInt(20)))
	assert.True(t, engine.IsMember(1, big.NewInt(30)))

	members := engine.Members(1)
	require.Len(t, members, 2)
	assert.Equal(t, int64(30), members[0].Int64())
	assert.Equal(t, int64(20), members[1].Int64())

	expected, err := ComputeRoot([]*big.Int{big.NewInt(30), big.NewInt(20)})
	require.NoError(t, err)
	assert.Equal(t, 0, engine.MerkleRoot(1).Cmp(expected))
}

func TestRemoveMemberEdgeCases(t *testing.T) {
	engine, _ := newTestEngine()
	require.NoError(t, engine.CreateGroup(1, admin))
	require.NoError(t, engine.AddMember(admin, 1, big.NewInt(10)))

	t.Run("unknown member", func(t *testing.T) {
		err := engine.RemoveMember(admin, 1, big.NewInt(999))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown group", func(t *testing.T) {
		err := engine.RemoveMember(admin, 7, big.NewInt(10))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stranger rejected", func(t *testing.T) {
		err := engine.RemoveMember(stranger, 1, big.NewInt(10))
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.True(t, engine.IsMember(1, big.NewInt(10)))
	})

	t.Run("last member leaves empty group", func(t *testing.T) {
		require.NoError(t, engine.RemoveMember(admin, 1, big.NewInt(10)))
		assert.Equal(t, uint32(0), engine.GroupSize(1))
		assert.Equal(t, 0, engine.MerkleRoot(1).Sign())
	})

	t.Run("re-add after removal", func(t *testing.T) {
		require.NoError(t, engine.AddMember(admin, 1, big.NewInt(10)))
		assert.True(t, engine.IsMember(1, big.NewInt(10)))
	})
}

func TestNullifierSingleUse(t *testing.T) {
	engine, recorder := newTestEngine()
	nullifier := big.NewInt(0xDEAD)

	assert.False(t, engine.IsNullifierUsed(nullifier))
	engine.MarkNullifierUsed(nullifier)
	assert.True(t, engine.IsNullifierUsed(nullifier))

	// Marking again stays used and emits a second audit record; the set
	// itself is idempotent.
	engine.MarkNullifierUsed(nullifier)
	assert.True(t, engine.IsNullifierUsed(nullifier))
	assert.Len(t, recorder.ByType(events.NullifierUsed), 2)

	assert.False(t, engine.IsNullifierUsed(big.NewInt(0xBEEF)))
	assert.False(t, engine.IsNullifierUsed(nil))
}

func TestNullifierSetIsGlobalAcrossGroups(t *testing.T) {
	verifier := &stubVerifier{result: true}
	engine, _ := newTestEngine(WithVerifier(verifier, "test"))
	require.NoError(t, engine.CreateGroup(1, admin))
	require.NoError(t, engine.CreateGroup(2, admin))
	require.NoError(t, engine.AddMember(admin, 1, big.NewInt(5)))
	require.NoError(t, engine.AddMember(admin, 2, big.NewInt(6)))

	nullifier := big.NewInt(0xCAFE)
	external := big.NewInt(1)
	proof := validLookingProof()

	assert.True(t, engine.VerifyProof(1, []byte("x"), nullifier, external, proof))
	engine.MarkNullifierUsed(nullifier)

	// Consumed in group 1, the same nullifier is dead in group 2 as well.
	assert.False(t, engine.VerifyProof(2, []byte("x"), nullifier, external, proof))
}

func TestAddThenRemoveChangesRoot(t *testing.T) {
	engine, _ := newTestEngine()
	require.NoError(t, engine.CreateGroup(1, admin))
	require.NoError(t, engine.AddMember(admin, 1, big.NewInt(1001)))
	require.NoError(t, engine.AddMember(admin, 1, big.NewInt(1002)))

	rootBefore := engine.MerkleRoot(1)
	require.NoError(t, engine.RemoveMember(admin, 1, big.NewInt(1001)))
	rootAfter := engine.MerkleRoot(1)

	assert.NotEqual(t, 0, rootBefore.Cmp(rootAfter))
	assert.Equal(t, uint32(1), engine.GroupSize(1))
	assert.False(t, engine.IsMember(1, big.NewInt(1001)))
	assert.True(t, engine.IsMember(1, big.NewInt(1002)))
}

func TestMembersReturnsCopies(t *testing.T) {
	engine, _ := newTestEngine()
	require.NoError(t, engine.CreateGroup(1, admin))
	require.NoError(t, engine.AddMember(admin, 1, big.NewInt(10)))

	members := engine.Members(1)
	require.Len(t, members, 1)
	members[0].SetInt64(999)

	assert.True(t, engine.IsMember(1, big.NewInt(10)))
	assert.False(t, engine.IsMember(1, big.NewInt(999)))
}
