package debate

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// NoticeDuration 提示訊息自動消失的時間
const NoticeDuration = 5 * time.Second

// NoticeKind 定義提示的種類
type NoticeKind string

const (
	NoticePhaseEnded      NoticeKind = "phase-ended"
	NoticeTeamBudgetEnded NoticeKind = "team-budget-ended"
	NoticeSpeakerTurnEnd  NoticeKind = "speaker-turn-ended"
	NoticeBudgetExhausted NoticeKind = "budget-exhausted"
	NoticeDebateEnded     NoticeKind = "debate-ended"
)

// Notice 是短暫的 UI 提示，不屬於狀態的一部分
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Step    StepType   `json:"step,omitempty"`
	Team    Team       `json:"team,omitempty"`
	Speaker string     `json:"speaker,omitempty"`
	// Sound 表示客戶端應該播放提示音
	Sound bool `json:"sound"`
}

func phaseEnded(step Step) Notice {
	msg := fmt.Sprintf("%s 시간이 종료되었습니다.", step.Type)
	if step.Team != TeamNone {
		msg = fmt.Sprintf("%s (%s) 시간이 종료되었습니다.", step.Type, step.Team)
	}
	return Notice{Kind: NoticePhaseEnded, Message: msg, Step: step.Type, Team: step.Team, Sound: true}
}

func teamBudgetEnded(team Team) Notice {
	return Notice{
		Kind:    NoticeTeamBudgetEnded,
		Message: fmt.Sprintf("%s팀의 시간이 모두 종료되었습니다.", team),
		Team:    team,
		Sound:   true,
	}
}

func speakerTurnEnded(sp Speaker) Notice {
	return Notice{
		Kind:    NoticeSpeakerTurnEnd,
		Message: fmt.Sprintf("%s의 발언 시간이 종료되었습니다.", sp.Name),
		Team:    sp.Team,
		Speaker: sp.ID,
		Sound:   true,
	}
}

func budgetExhausted(team Team) Notice {
	return Notice{
		Kind:    NoticeBudgetExhausted,
		Message: fmt.Sprintf("%s팀의 남은 시간이 없습니다.", team),
		Team:    team,
		Sound:   true,
	}
}

func debateEnded() Notice {
	return Notice{Kind: NoticeDebateEnded, Message: "토론이 끝났습니다"}
}

// NoticeBoard 保存目前顯示的提示，並在 NoticeDuration 後清除
type NoticeBoard struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	current *Notice
	timer   clockwork.Timer
}

// NewNoticeBoard 建立提示板
func NewNoticeBoard(clock clockwork.Clock) *NoticeBoard {
	return &NoticeBoard{clock: clock}
}

// Show 顯示新提示，取代前一個並重新計時
func (b *NoticeBoard) Show(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	shown := n
	b.current = &shown
	b.timer = b.clock.AfterFunc(NoticeDuration, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.current == &shown {
			b.current = nil
		}
	})
}

// Current 回傳目前的提示
func (b *NoticeBoard) Current() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Notice{}, false
	}
	return *b.current, true
}

// Close 停止計時器
func (b *NoticeBoard) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
