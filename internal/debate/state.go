package debate

import "fmt"

// RunState 是整個辯論進度的唯一可變聚合，會被完整地廣播給所有觀眾
type RunState struct {
	Steps                []Step       `json:"steps"`
	CurrentStepIndex     int          `json:"currentStepIndex"`
	RemainingTime        int          `json:"remainingTime"`
	IsRunning            bool         `json:"isRunning"`
	TrackSpeakers        bool         `json:"enableDebaters"`
	Debaters             []Speaker    `json:"debaters"`
	CurrentSpeakerID     string       `json:"currentSpeakerId,omitempty"`
	SpeakerTimeRemaining int          `json:"speakerTimeRemaining"`
	TeamRemainingTime    map[Team]int `json:"teamRemainingTime"`
	ActiveSpeakingTeam   Team         `json:"activeSpeakingTeam,omitempty"`
}

// Clone 深拷貝，所有狀態轉換都在拷貝上進行
func (s RunState) Clone() RunState {
	out := s
	if s.Steps != nil {
		out.Steps = make([]Step, len(s.Steps))
		copy(out.Steps, s.Steps)
	}
	if s.Debaters != nil {
		out.Debaters = make([]Speaker, len(s.Debaters))
		copy(out.Debaters, s.Debaters)
	}
	if s.TeamRemainingTime != nil {
		out.TeamRemainingTime = make(map[Team]int, len(s.TeamRemainingTime))
		for k, v := range s.TeamRemainingTime {
			out.TeamRemainingTime[k] = v
		}
	}
	return out
}

// Ended 當前索引等於階段數時，表示辯論已結束
func (s RunState) Ended() bool {
	return s.CurrentStepIndex >= len(s.Steps)
}

// CurrentStep 回傳當前階段，結束後回傳 false
func (s RunState) CurrentStep() (Step, bool) {
	if s.CurrentStepIndex < 0 || s.Ended() {
		return Step{}, false
	}
	return s.Steps[s.CurrentStepIndex], true
}

func (s RunState) inFreeDebate() bool {
	step, ok := s.CurrentStep()
	return ok && step.IsFreeDebate()
}

// Speaker 依 ID 查找辯手
func (s RunState) Speaker(id string) (Speaker, bool) {
	for _, d := range s.Debaters {
		if d.ID == id {
			return d, true
		}
	}
	return Speaker{}, false
}

// CurrentSpeaker 回傳目前持有發言權的辯手
func (s RunState) CurrentSpeaker() (Speaker, bool) {
	if s.CurrentSpeakerID == "" {
		return Speaker{}, false
	}
	return s.Speaker(s.CurrentSpeakerID)
}

// clearFloor 清空發言權，所有辯手都不在發言
func (s *RunState) clearFloor() {
	s.CurrentSpeakerID = ""
	s.ActiveSpeakingTeam = TeamNone
	for i := range s.Debaters {
		s.Debaters[i].IsSpeaking = false
	}
}

// giveFloor 把發言權交給指定辯手，只有他的 IsSpeaking 為 true
func (s *RunState) giveFloor(sp Speaker) {
	s.CurrentSpeakerID = sp.ID
	s.ActiveSpeakingTeam = sp.Team
	for i := range s.Debaters {
		s.Debaters[i].IsSpeaking = s.Debaters[i].ID == sp.ID
	}
}

// Validate 檢查不變量，主要用於接收外部快照時
func (s RunState) Validate() error {
	if s.CurrentStepIndex < 0 || s.CurrentStepIndex > len(s.Steps) {
		return fmt.Errorf("%w: step index %d out of range", ErrInvalidState, s.CurrentStepIndex)
	}
	if s.RemainingTime < 0 || s.SpeakerTimeRemaining < 0 {
		return fmt.Errorf("%w: negative clock", ErrInvalidState)
	}
	for team, left := range s.TeamRemainingTime {
		if left < 0 {
			return fmt.Errorf("%w: negative budget for %s", ErrInvalidState, team)
		}
	}
	speaking := 0
	for _, d := range s.Debaters {
		if d.IsSpeaking {
			speaking++
			if d.ID != s.CurrentSpeakerID {
				return fmt.Errorf("%w: %s is speaking without the floor", ErrInvalidState, d.ID)
			}
		}
	}
	if speaking > 1 {
		return fmt.Errorf("%w: more than one speaker", ErrInvalidState)
	}
	if s.CurrentSpeakerID != "" {
		sp, ok := s.CurrentSpeaker()
		if !ok {
			return fmt.Errorf("%w: unknown speaker %s", ErrInvalidState, s.CurrentSpeakerID)
		}
		if sp.Team != s.ActiveSpeakingTeam {
			return fmt.Errorf("%w: active team %s does not match speaker team %s", ErrInvalidState, s.ActiveSpeakingTeam, sp.Team)
		}
	}
	return nil
}

// FormatTime 以 分:秒 格式顯示，秒數補零
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
