package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"debate_timer/internal/debate"
	"debate_timer/internal/registry"
	"debate_timer/internal/replica"
)

var (
	ErrRunNotFound    = errors.New("no debate is running in this room")
	ErrUnknownCommand = errors.New("unknown command")
)

// 主持人指令
const (
	CommandToggle  = "toggle"
	CommandReset   = "reset"
	CommandStep    = "step"
	CommandNext    = "next"
	CommandPrev    = "prev"
	CommandTeam    = "team"
	CommandSpeaker = "speaker"
	CommandAdjust  = "adjust"
)

// Command 是主持人對進行中辯論的操作
type Command struct {
	Type      string      `json:"type" binding:"required"`
	Index     int         `json:"index"`
	Team      debate.Team `json:"team"`
	SpeakerID string      `json:"speakerId"`
	// Steps 是調整隊伍時間的單位數（每單位 10 秒），可為負數
	Steps int `json:"steps"`
}

// Transition 把指令轉成狀態轉換
func (c Command) Transition() (debate.Transition, error) {
	switch c.Type {
	case CommandToggle:
		return debate.TogglePlay, nil
	case CommandReset:
		return debate.ResetStep, nil
	case CommandStep:
		return debate.ChangeStep(c.Index), nil
	case CommandNext:
		return debate.NextStep, nil
	case CommandPrev:
		return debate.PrevStep, nil
	case CommandTeam:
		return debate.SelectTeam(c.Team), nil
	case CommandSpeaker:
		return debate.SelectSpeaker(c.SpeakerID), nil
	case CommandAdjust:
		return debate.AdjustTeamTime(c.Team, c.Steps), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Type)
}

// StartRequest 指定要開始的辯論；有 Config 時直接使用，否則由模板與修改組成
type StartRequest struct {
	Config     *debate.Config `json:"config"`
	TemplateID string         `json:"templateId"`
	VariantID  string         `json:"variantId"`
	Edits      debate.Edits   `json:"edits"`
}

// RunView 是進行中辯論的外部表示
type RunView struct {
	Room   string          `json:"room"`
	Config debate.Config   `json:"config"`
	State  debate.RunState `json:"state"`
	Notice *debate.Notice  `json:"notice,omitempty"`
	// Display 是格式化後的剩餘時間，例如 2:05
	Display string `json:"display"`
}

// NoticeSender 把提示送給房間的觀眾
type NoticeSender interface {
	SendNotice(roomID string, n debate.Notice) error
}

// run 是一場由伺服器擔任主持人的辯論
type run struct {
	config  debate.Config
	session *replica.Session
	engine  *debate.Engine
	board   *debate.NoticeBoard

	// lastActive 受 DebateService.mu 保護
	lastActive time.Time
}

// DebateService 在伺服器上執行辯論，伺服器是唯一的寫入者
type DebateService struct {
	catalog   *debate.Catalog
	rooms     *RoomService
	registry  registry.Registry
	publisher replica.Publisher
	notices   NoticeSender
	clock     clockwork.Clock

	mu   sync.Mutex
	runs map[string]*run
}

func NewDebateService(catalog *debate.Catalog, rooms *RoomService, reg registry.Registry, publisher replica.Publisher, notices NoticeSender, clock clockwork.Clock) *DebateService {
	s := &DebateService{
		catalog:   catalog,
		rooms:     rooms,
		registry:  reg,
		publisher: publisher,
		notices:   notices,
		clock:     clock,
		runs:      make(map[string]*run),
	}
	rooms.OnDelete(s.Teardown)
	return s
}

// authorize 本機房間不需要憑證；其他房間必須已登記並持有主持人憑證
func (s *DebateService) authorize(ctx context.Context, roomID, token string) error {
	if replica.IsLocal(roomID) {
		return nil
	}
	if !registry.ValidRoomID(roomID) {
		return registry.ErrInvalidRoomID
	}
	return s.rooms.Authorize(ctx, roomID, token)
}

// Start 開始一場辯論；房間已有辯論時會被取代
func (s *DebateService) Start(ctx context.Context, roomID, token string, req StartRequest) (RunView, error) {
	if err := s.authorize(ctx, roomID, token); err != nil {
		return RunView{}, err
	}
	cfg, err := s.buildConfig(roomID, req)
	if err != nil {
		return RunView{}, err
	}

	r := &run{config: cfg, board: debate.NewNoticeBoard(s.clock), lastActive: s.clock.Now()}
	publisher := replica.MultiPublisher{s.publisher, snapshotPublisher{registry: s.registry}}
	r.session = replica.NewSession(roomID, replica.RoleModerator, publisher)
	r.engine = debate.NewEngine(s.clock, r.session, func(n debate.Notice) { s.notify(roomID, r, n) })
	r.session.Subscribe(r.engine.Sync)

	if err := r.session.Initialize(ctx, debate.NewRunState(cfg)); err != nil {
		return RunView{}, err
	}

	s.mu.Lock()
	old := s.runs[roomID]
	s.runs[roomID] = r
	s.mu.Unlock()
	if old != nil {
		old.stop()
	}

	log.Info().Str("room", roomID).Str("template", cfg.TemplateName).Int("steps", len(cfg.Steps)).Msg("debate started")
	return r.view(roomID), nil
}

func (s *DebateService) buildConfig(roomID string, req StartRequest) (debate.Config, error) {
	if req.Config != nil {
		cfg := *req.Config
		cfg.RoomID = roomID
		cfg.Steps = debate.NormalizeSteps(cfg.Steps)
		if err := cfg.Validate(); err != nil {
			return debate.Config{}, err
		}
		return cfg, nil
	}

	var (
		tpl debate.Template
		err error
	)
	if req.VariantID != "" {
		tpl, err = s.catalog.Variant(req.TemplateID, req.VariantID)
	} else {
		tpl, err = s.catalog.Template(req.TemplateID)
	}
	if err != nil {
		return debate.Config{}, err
	}
	edits := req.Edits
	edits.RoomID = roomID
	return debate.BuildConfig(tpl, edits)
}

// State 回傳進行中辯論的狀態與目前的提示
func (s *DebateService) State(roomID string) (RunView, error) {
	r, ok := s.get(roomID)
	if !ok {
		return RunView{}, ErrRunNotFound
	}
	return r.view(roomID), nil
}

// Command 執行主持人指令；沒有憑證的呼叫被拒絕，狀態不變
func (s *DebateService) Command(ctx context.Context, roomID, token string, cmd Command) (RunView, error) {
	if err := s.authorize(ctx, roomID, token); err != nil {
		return RunView{}, err
	}
	t, err := cmd.Transition()
	if err != nil {
		return RunView{}, err
	}
	r, ok := s.get(roomID)
	if !ok {
		return RunView{}, ErrRunNotFound
	}
	s.touch(r)

	_, notices, err := r.session.Update(ctx, t)
	if err != nil {
		return RunView{}, err
	}
	for _, n := range notices {
		s.notify(roomID, r, n)
	}
	return r.view(roomID), nil
}

// Stop 結束並移除房間的辯論
func (s *DebateService) Stop(ctx context.Context, roomID, token string) error {
	if err := s.authorize(ctx, roomID, token); err != nil {
		return err
	}
	if _, ok := s.get(roomID); !ok {
		return ErrRunNotFound
	}
	s.Teardown(roomID)
	return nil
}

// Teardown 停止計時並移除辯論，房間被刪除或清理時呼叫
func (s *DebateService) Teardown(roomID string) {
	s.mu.Lock()
	r := s.runs[roomID]
	delete(s.runs, roomID)
	s.mu.Unlock()

	if r != nil {
		r.stop()
		log.Info().Str("room", roomID).Msg("debate stopped")
	}
}

// Shutdown 停止所有辯論
func (s *DebateService) Shutdown() {
	s.mu.Lock()
	runs := s.runs
	s.runs = make(map[string]*run)
	s.mu.Unlock()

	for _, r := range runs {
		r.stop()
	}
}

// Evict 停止在 before 之前就沒有主持人操作的辯論。
// 本機房間不會登記，只能靠這裡清理。
func (s *DebateService) Evict(_ context.Context, before time.Time) ([]string, error) {
	var (
		ids   []string
		stale []*run
	)
	s.mu.Lock()
	for id, r := range s.runs {
		if r.lastActive.Before(before) {
			ids = append(ids, id)
			stale = append(stale, r)
			delete(s.runs, id)
		}
	}
	s.mu.Unlock()

	for i, r := range stale {
		r.stop()
		log.Info().Str("room", ids[i]).Msg("idle debate stopped")
	}
	return ids, nil
}

// Active 回傳進行中的辯論數
func (s *DebateService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func (s *DebateService) touch(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.lastActive = s.clock.Now()
}

func (s *DebateService) get(roomID string) (*run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[roomID]
	return r, ok
}

func (s *DebateService) notify(roomID string, r *run, n debate.Notice) {
	r.board.Show(n)
	if s.notices == nil || replica.IsLocal(roomID) {
		return
	}
	if err := s.notices.SendNotice(roomID, n); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("failed to send notice")
	}
}

func (r *run) stop() {
	r.engine.Stop()
	r.board.Close()
}

func (r *run) view(roomID string) RunView {
	st, _ := r.session.State()
	v := RunView{Room: roomID, Config: r.config, State: st, Display: debate.FormatTime(st.RemainingTime)}
	if n, ok := r.board.Current(); ok {
		v.Notice = &n
	}
	return v
}
