package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillproof/internal/ledger/models"
	"skillproof/internal/ledger/sequencer"
	"skillproof/internal/ledger/service"
	"skillproof/internal/ledger/store/memory"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := service.New(store)

	cfg, err := Bootstrap(ctx, store, svc, "owner", 100)
	require.NoError(t, err)
	assert.Equal(t, id.Principal("owner"), cfg.Owner)
	assert.Equal(t, id.Height(1), cfg.UpdatedAt)

	t.Run("restart keeps the recorded owner and height", func(t *testing.T) {
		cfg, err := Bootstrap(ctx, store, svc, "someone-else", 900)
		require.NoError(t, err)
		assert.Equal(t, id.Principal("owner"), cfg.Owner)
		assert.Equal(t, uint64(100), cfg.FeeBasisPoints)

		h, err := store.CurrentHeight(ctx)
		require.NoError(t, err)
		assert.Equal(t, id.Height(1), h)
	})
}

func TestMutationsAreSequenced(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := service.New(store)
	_, err := Bootstrap(ctx, store, svc, "owner", 100)
	require.NoError(t, err)

	seq := sequencer.New(store, sequencer.WithBlockInterval(time.Millisecond))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = seq.Run(runCtx) }()
	<-seq.Ready()

	l := New(svc, seq)
	require.NoError(t, l.RegisterUser(ctx, "alice", "Alice", ""))
	profile, err := l.GetUserProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id.Height(2), profile.RegistrationTime, "first user block follows genesis")
	assert.Equal(t, id.Height(2), l.Height())

	skill, err := l.RegisterSkill(ctx, "alice", models.SkillDeclaration{Name: "Go", Category: "devops", RequiredValidations: 1})
	require.NoError(t, err)
	assert.Equal(t, id.SkillID(1), skill.ID)

	_, err = l.AddEmploymentRecord(ctx, "bob", models.EmploymentEntry{Employer: "acme", Title: "Engineer", StartDate: 1})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotRegistered))

	err = l.UpdatePlatformFee(ctx, "alice", 5)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotAuthorized))
}
