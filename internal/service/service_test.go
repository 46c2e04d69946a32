package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"debate_timer/internal/debate"
	"debate_timer/internal/registry"
	"debate_timer/internal/relay"
	"debate_timer/internal/replica"
	"debate_timer/internal/utils"
)

type fixture struct {
	clock    *clockwork.FakeClock
	registry *registry.Memory
	services *Services
}

func newFixture(t *testing.T, relayEnabled bool) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	reg := registry.NewMemory(clock)
	tokens := utils.NewTokenManager("test-secret", "test", time.Hour, time.Hour)
	svc := NewServices(reg, relay.NewHub(relay.Options{}), tokens, debate.DefaultCatalog(), clock, Options{RelayEnabled: relayEnabled})
	t.Cleanup(svc.Debate.Shutdown)
	return &fixture{clock: clock, registry: reg, services: svc}
}

func TestRoomService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	rooms := f.services.Room

	status, err := rooms.CheckRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.False(t, status.Exists)

	token, err := rooms.CreateRoom(ctx, "room-1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = rooms.CreateRoom(ctx, "room-1", nil)
	assert.ErrorIs(t, err, registry.ErrRoomExists)
	assert.Equal(t, 1, f.registry.Len())

	st := debate.NewRunState(debate.Config{Steps: []debate.Step{{ID: "s", Type: debate.StepOpening, Time: 90}}})
	require.NoError(t, rooms.UpdateSnapshot(ctx, "room-1", token, st))
	status, err = rooms.CheckRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	require.NotNil(t, status.State)
	assert.Equal(t, 90, status.State.RemainingTime)

	// 沒有憑證或憑證屬於其他房間都會被拒絕
	assert.ErrorIs(t, rooms.UpdateSnapshot(ctx, "room-1", "", st), ErrForbidden)
	assert.ErrorIs(t, rooms.UpdateSnapshot(ctx, "room-9", token, st), registry.ErrRoomNotFound)
	other, err := rooms.CreateRoom(ctx, "room-2", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, rooms.DeleteRoom(ctx, "room-1", other), ErrForbidden)

	require.NoError(t, rooms.DeleteRoom(ctx, "room-1", token))
	require.NoError(t, rooms.DeleteRoom(ctx, "room-1", ""))
	status, _ = rooms.CheckRoom(ctx, "room-1")
	assert.False(t, status.Exists)
}

func TestRoomService_ModeratorKeyHash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	token, err := f.services.Room.CreateRoom(ctx, "room-1", nil)
	require.NoError(t, err)

	room, err := f.registry.Get(ctx, "room-1")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(room.ModeratorKeyHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	require.NoError(t, f.services.Room.Authorize(ctx, "room-1", token))
}

func TestRoomService_LocalRooms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	token, err := f.services.Room.CreateRoom(ctx, "local-1", nil)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Zero(t, f.registry.Len())

	status, err := f.services.Room.CheckRoom(ctx, "local-1")
	require.NoError(t, err)
	assert.False(t, status.Exists)
}

func TestRoomService_TokenFromDeletedRoomIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	first, err := f.services.Room.CreateRoom(ctx, "room-1", nil)
	require.NoError(t, err)
	require.NoError(t, f.services.Room.DeleteRoom(ctx, "room-1", first))
	_, err = f.services.Room.CreateRoom(ctx, "room-1", nil)
	require.NoError(t, err)

	// 舊憑證的金鑰與新房間的雜湊不符
	assert.ErrorIs(t, f.services.Room.Authorize(ctx, "room-1", first), ErrForbidden)
}

func TestNegotiate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	token, err := f.services.Room.CreateRoom(ctx, "room-1", nil)
	require.NoError(t, err)

	obs, err := f.services.Negotiate.Negotiate(ctx, "room-1", "", "", "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "observer", obs.Role)
	assert.Equal(t, "debate", obs.Hub)
	assert.Equal(t, []string{"debate.room-1"}, obs.Groups)
	assert.Equal(t, []string{utils.PermissionJoinLeaveGroup}, obs.Permissions)
	assert.Contains(t, obs.UserID, "user-")

	u, err := url.Parse(obs.URL)
	require.NoError(t, err)
	assert.Equal(t, "ws", u.Scheme)
	assert.Equal(t, RelayPath, u.Path)
	claims, err := f.services.Tokens.ParseRelayToken(u.Query().Get("access_token"))
	require.NoError(t, err)
	assert.False(t, claims.CanSend("debate.room-1"))

	mod, err := f.services.Negotiate.Negotiate(ctx, "room-1", replica.RoleModerator, token, "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, mod.Permissions, utils.PermissionSendToGroup)
	assert.Contains(t, mod.URL, "wss://example.com/api/relay/ws")

	_, err = f.services.Negotiate.Negotiate(ctx, "room-1", replica.RoleModerator, "", "http://example.com")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.services.Negotiate.Negotiate(ctx, "room-1", "judge", "", "http://example.com")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = f.services.Negotiate.Negotiate(ctx, "local-1", "", "", "http://example.com")
	assert.ErrorIs(t, err, ErrLocalRoom)

	disabled := newFixture(t, false)
	_, err = disabled.services.Negotiate.Negotiate(ctx, "room-1", "", "", "http://example.com")
	assert.ErrorIs(t, err, ErrRelayUnavailable)
}

type noticeRecorder struct {
	mu  sync.Mutex
	got []debate.Notice
}

func (r *noticeRecorder) SendNotice(_ string, n debate.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *noticeRecorder) kinds() []debate.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []debate.NoticeKind
	for _, n := range r.got {
		out = append(out, n.Kind)
	}
	return out
}

func TestDebateService_HostedRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	reg := registry.NewMemory(clock)
	tokens := utils.NewTokenManager("test-secret", "test", time.Hour, time.Hour)
	rooms := NewRoomService(reg, tokens)
	notices := &noticeRecorder{}
	debates := NewDebateService(debate.DefaultCatalog(), rooms, reg, replica.Discard, notices, clock)
	defer debates.Shutdown()

	token, err := rooms.CreateRoom(ctx, "room-1", nil)
	require.NoError(t, err)

	cfg := debate.Config{
		Steps:            []debate.Step{{ID: "s1", Type: debate.StepOpening, Time: 2, Team: debate.TeamFor}},
		AffirmativeCount: 1,
		NegativeCount:    1,
		EnableDebaters:   true,
	}
	view, err := debates.Start(ctx, "room-1", token, StartRequest{Config: &cfg})
	require.NoError(t, err)
	assert.Equal(t, 2, view.State.RemainingTime)
	assert.Equal(t, "0:02", view.Display)

	// 觀眾（沒有憑證）不能操作
	_, err = debates.Command(ctx, "room-1", "", Command{Type: CommandToggle})
	assert.ErrorIs(t, err, ErrForbidden)
	view, _ = debates.State("room-1")
	assert.False(t, view.State.IsRunning)

	_, err = debates.Command(ctx, "room-1", token, Command{Type: CommandToggle})
	require.NoError(t, err)

	for want := 1; want >= 0; want-- {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(debate.TickInterval)
		require.Eventually(t, func() bool {
			v, err := debates.State("room-1")
			return err == nil && v.State.RemainingTime == want
		}, time.Second, 5*time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(notices.kinds()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []debate.NoticeKind{debate.NoticePhaseEnded}, notices.kinds())

	view, err = debates.State("room-1")
	require.NoError(t, err)
	assert.False(t, view.State.IsRunning)
	require.NotNil(t, view.Notice)
	assert.Equal(t, debate.NoticePhaseEnded, view.Notice.Kind)

	// 每次變化都寫回房間快照
	room, err := reg.Get(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, room.Snapshot)
	assert.Equal(t, 0, room.Snapshot.RemainingTime)

	_, err = debates.Command(ctx, "room-1", token, Command{Type: CommandNext})
	require.NoError(t, err)
	assert.Contains(t, notices.kinds(), debate.NoticeDebateEnded)

	// 刪除房間會一併結束辯論
	require.NoError(t, rooms.DeleteRoom(ctx, "room-1", token))
	_, err = debates.State("room-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestDebateService_TemplateAndCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	debates := f.services.Debate

	view, err := debates.Start(ctx, "local-practice", "", StartRequest{
		TemplateID: "free-debate",
		VariantID:  "visual-free-debate",
		Edits:      debate.Edits{AffirmativeCount: 2, NegativeCount: 2, EnableDebaters: false},
	})
	require.NoError(t, err)
	assert.Equal(t, "비주얼식", view.Config.TemplateName)
	assert.Equal(t, 60, view.State.RemainingTime)
	assert.Equal(t, "local-practice", view.Config.RoomID)

	view, err = debates.Command(ctx, "local-practice", "", Command{Type: CommandStep, Index: 2})
	require.NoError(t, err)
	assert.Equal(t, 1200, view.State.RemainingTime)

	view, err = debates.Command(ctx, "local-practice", "", Command{Type: CommandTeam, Team: debate.TeamFor})
	require.NoError(t, err)
	assert.Equal(t, debate.TeamFor, view.State.ActiveSpeakingTeam)
	assert.Equal(t, 120, view.State.SpeakerTimeRemaining)

	view, err = debates.Command(ctx, "local-practice", "", Command{Type: CommandAdjust, Team: debate.TeamAgainst, Steps: -2})
	require.NoError(t, err)
	assert.Equal(t, 580, view.State.TeamRemainingTime[debate.TeamAgainst])

	_, err = debates.Command(ctx, "local-practice", "", Command{Type: "explode"})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = debates.Start(ctx, "local-x", "", StartRequest{TemplateID: "nope"})
	assert.ErrorIs(t, err, debate.ErrTemplateUnknown)

	_, err = debates.Start(ctx, "room-unknown", "", StartRequest{TemplateID: "free-debate"})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, debates.Stop(ctx, "local-practice", ""))
	assert.ErrorIs(t, debates.Stop(ctx, "local-practice", ""), ErrRunNotFound)
	assert.Zero(t, debates.Active())
}

func TestDebateService_StartWithStepsWithoutIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	view, err := f.services.Debate.Start(ctx, "local-x", "", StartRequest{Config: &debate.Config{
		TemplateName: "custom",
		Steps: []debate.Step{
			{Type: debate.StepOpening, Time: 60},
			{Type: debate.StepClosing, Time: 60},
		},
	}})
	require.NoError(t, err)
	require.Len(t, view.Config.Steps, 2)
	assert.Equal(t, "step-1", view.Config.Steps[0].ID)
	assert.Equal(t, "step-2", view.Config.Steps[1].ID)
	assert.Equal(t, "step-1", view.State.Steps[0].ID)
}

func TestDebateService_EvictsIdleRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	debates := f.services.Debate

	for i := 0; i < 3; i++ {
		_, err := debates.Start(ctx, fmt.Sprintf("local-%d", i), "", StartRequest{TemplateID: "free-debate"})
		require.NoError(t, err)
	}
	janitor := registry.NewJanitor(f.registry, f.clock, time.Hour, time.Minute, debates.Teardown).Also(debates)

	// 有操作的辯論會延後清理
	f.clock.Advance(50 * time.Minute)
	_, err := debates.Command(ctx, "local-0", "", Command{Type: CommandNext})
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)
	janitor.Sweep(ctx)

	assert.Equal(t, 1, debates.Active())
	_, err = debates.State("local-0")
	require.NoError(t, err)
	_, err = debates.State("local-1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	f.clock.Advance(48 * time.Hour)
	janitor.Sweep(ctx)
	assert.Zero(t, debates.Active())
}
