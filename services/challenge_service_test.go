package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/ride-challenges/models"
)

func adminActor(id int) Actor { return Actor{UserID: id, Role: models.RoleAdmin} }
func riderActor(id int) Actor { return Actor{UserID: id, Role: models.RoleRider} }

func TestCreateChallengeValidates(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.store.addUser("alice")

	_, err := env.challenges.Create(context.Background(), alice.ID, CreateChallengeInput{
		Name:           "  ",
		TargetDistance: 0,
		StartDate:      "2024-05-10",
		EndDate:        "2024-05-01",
		Type:           "relay",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "target_distance")
	assert.Contains(t, verr.Fields, "end_date")
	assert.Contains(t, verr.Fields, "type")

	_, err = env.challenges.Create(context.Background(), alice.ID, CreateChallengeInput{
		Name: "x", TargetDistance: 10, StartDate: "10.05.2024", EndDate: "2024-05-31",
	})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "start_date")
}

func TestCreateChallengeEnrollsCreator(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	alice := env.store.addUser("alice")
	env.store.addTrack(alice.ID, "old.gpx", 5, day("2024-01-01 08:00"), "Ride")
	env.store.addTrack(alice.ID, "run.gpx", 5, day("2023-12-01 08:00"), "Run")
	newest := env.store.addTrack(alice.ID, "new.gpx", 5, day("2024-05-03 08:00"), "Ride")

	desc := "  "
	c, err := env.challenges.Create(ctx, alice.ID, CreateChallengeInput{
		Name:           " May kilometres ",
		Description:    &desc,
		TargetDistance: 500,
		StartDate:      "2024-05-01",
		EndDate:        "2024-05-31",
		Type:           "Individual",
	})
	require.NoError(t, err)
	assert.Equal(t, "May kilometres", c.Name)
	assert.Nil(t, c.Description)
	assert.Equal(t, models.ChallengeIndividual, c.Type)
	assert.Equal(t, 1, c.ParticipantCount)

	participants, err := env.challenges.Participants(ctx, nil, c.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, alice.ID, participants[0].UserID)
	require.NotNil(t, participants[0].TrackID)
	assert.NotEqual(t, newest.ID, *participants[0].TrackID)

	snaps := env.store.snapshotsOf(alice.ID, c.ID)
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].Rank)
}

func TestCreateChallengeDefaultsToGroup(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.store.addUser("alice")

	c, err := env.challenges.Create(context.Background(), alice.ID, CreateChallengeInput{
		Name: "Talaka", TargetDistance: 1000, StartDate: "2024-05-01", EndDate: "2024-05-01",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeGroup, c.Type)

	participants, err := env.challenges.Participants(context.Background(), nil, c.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Nil(t, participants[0].TrackID)
}

func TestPrivateChallengeVisibility(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	alice := env.store.addUser("alice")
	bob := env.store.addUser("bob")
	carol := env.store.addUser("carol")
	root := env.store.addUser("root")

	public := env.store.addChallenge(alice.ID, "Public", "2024-04-01", "2024-04-30")
	private, err := env.challenges.Create(ctx, alice.ID, CreateChallengeInput{
		Name: "Secret", TargetDistance: 10, StartDate: "2024-05-01", EndDate: "2024-05-31", IsPrivate: true,
	})
	require.NoError(t, err)
	require.NoError(t, env.challenges.Join(ctx, bob.ID, private.ID))

	_, err = env.challenges.Get(ctx, nil, private.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	bobActor, carolActor := riderActor(bob.ID), riderActor(carol.ID)
	_, err = env.challenges.Get(ctx, &carolActor, private.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	got, err := env.challenges.Get(ctx, &bobActor, private.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount)

	ids := func(list []*models.Challenge) []int {
		out := make([]int, 0, len(list))
		for _, c := range list {
			out = append(out, c.ID)
		}
		return out
	}

	list, err := env.challenges.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{public.ID}, ids(list))

	list, err = env.challenges.List(ctx, &carolActor)
	require.NoError(t, err)
	assert.Equal(t, []int{public.ID}, ids(list))

	list, err = env.challenges.List(ctx, &bobActor)
	require.NoError(t, err)
	assert.Equal(t, []int{private.ID, public.ID}, ids(list))

	admin := adminActor(root.ID)
	list, err = env.challenges.List(ctx, &admin)
	require.NoError(t, err)
	assert.Equal(t, []int{private.ID, public.ID}, ids(list))
}

func TestJoinLeaveAndClose(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	alice := env.store.addUser("alice")
	bob := env.store.addUser("bob")
	root := env.store.addUser("root")
	c := env.store.addChallenge(alice.ID, "May", "2024-05-01", "2024-05-31")
	env.store.addTrack(bob.ID, "b.gpx", 10, day("2024-05-02 08:00"), "Ride")

	require.NoError(t, env.challenges.Join(ctx, bob.ID, c.ID))
	require.NoError(t, env.challenges.Join(ctx, bob.ID, c.ID))
	participants, err := env.challenges.Participants(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
	assert.Len(t, env.store.snapshotsOf(bob.ID, c.ID), 1)

	assert.ErrorIs(t, env.challenges.Close(ctx, riderActor(bob.ID), c.ID), ErrForbiddenOperation)
	require.NoError(t, env.challenges.Close(ctx, riderActor(alice.ID), c.ID))
	assert.ErrorIs(t, env.challenges.Join(ctx, alice.ID, c.ID), ErrChallengeClosed)
	// Already a participant: still a no-op on a closed challenge.
	assert.NoError(t, env.challenges.Join(ctx, bob.ID, c.ID))

	assert.ErrorIs(t, env.challenges.Reopen(ctx, riderActor(alice.ID), c.ID), ErrForbiddenOperation)
	require.NoError(t, env.challenges.Reopen(ctx, adminActor(root.ID), c.ID))
	require.NoError(t, env.challenges.Join(ctx, alice.ID, c.ID))

	require.NoError(t, env.challenges.Leave(ctx, bob.ID, c.ID))
	assert.ErrorIs(t, env.challenges.Leave(ctx, bob.ID, c.ID), ErrParticipantNotFound)
	assert.ErrorIs(t, env.challenges.Join(ctx, bob.ID, 999), ErrChallengeNotFound)
}

func TestDeleteChallengeKeepsDetachedHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	alice := env.store.addUser("alice")
	bob := env.store.addUser("bob")
	root := env.store.addUser("root")
	c := env.store.addChallenge(alice.ID, "May", "2024-05-01", "2024-05-31")
	env.store.join(c.ID, alice.ID, bob.ID)
	env.store.addTrack(alice.ID, "a.gpx", 60, day("2024-05-05 08:00"), "Ride")
	env.store.addTrack(bob.ID, "b.gpx", 80, day("2024-05-05 09:00"), "Ride")
	_, err := env.positions.RecomputePositions(ctx, c.ID)
	require.NoError(t, err)
	_, err = env.comments.Add(ctx, riderActor(bob.ID), c.ID, "nice ride")
	require.NoError(t, err)

	assert.ErrorIs(t, env.challenges.Delete(ctx, riderActor(bob.ID), c.ID), ErrForbiddenOperation)
	require.NoError(t, env.challenges.Delete(ctx, adminActor(root.ID), c.ID))

	_, err = env.challenges.Get(ctx, nil, c.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	assert.Equal(t, 2, env.store.snapshotCount())
	assert.Empty(t, env.store.snapshotsOf(alice.ID, c.ID))
	assert.Empty(t, env.store.participants)
	assert.Empty(t, env.store.comments)

	current, err := env.positions.CurrentPositions(ctx, nil, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, current.Positions)

	assert.ErrorIs(t, env.challenges.Delete(ctx, adminActor(root.ID), c.ID), ErrChallengeNotFound)
}

func TestChallengeProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	alice := env.store.addUser("alice")
	bob := env.store.addUser("bob")
	carol := env.store.addUser("carol")
	c := env.store.addChallenge(alice.ID, "May", "2024-05-01", "2024-05-31")
	env.store.join(c.ID, alice.ID, bob.ID, carol.ID)
	env.store.addTrack(alice.ID, "a.gpx", 60, day("2024-05-05 08:00"), "Ride")
	env.store.addTrack(bob.ID, "b.gpx", 80, day("2024-05-06 08:00"), "Ride")
	env.store.addTrack(carol.ID, "c.gpx", 30, day("2024-05-06 08:00"), "Walk")

	p, err := env.challenges.Progress(ctx, nil, c.ID, day("2024-05-06 20:00"))
	require.NoError(t, err)
	assert.Equal(t, 140.0, p.TotalDistance)
	assert.Equal(t, 140.0, p.PercentComplete)
	assert.Equal(t, 80.0, p.TodayDistance)
	assert.Equal(t, 3, p.ParticipantCount)

	require.Len(t, p.Contributions, 2)
	assert.Equal(t, Contribution{UserID: bob.ID, Login: "bob", Distance: 80, Percent: 57.14}, p.Contributions[0])
	assert.Equal(t, Contribution{UserID: alice.ID, Login: "alice", Distance: 60, Percent: 42.86}, p.Contributions[1])

	require.Len(t, p.IdleParticipants, 1)
	assert.Equal(t, "carol", p.IdleParticipants[0].Login)

	require.Len(t, p.DailyTotals, 2)
	assert.Equal(t, "2024-05-05", p.DailyTotals[0].Date)
	assert.Equal(t, 60.0, p.DailyTotals[0].Cumulative)
	assert.Equal(t, 140.0, p.DailyTotals[1].Cumulative)
}
