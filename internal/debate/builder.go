package debate

import "fmt"

// MaxTeamSize 每隊辯手人數上限
const MaxTeamSize = 10

// Config 是開場前建立的辯論設定，進行中不會再改變
type Config struct {
	RoomID           string   `json:"roomId,omitempty"`
	TemplateName     string   `json:"templateName"`
	Steps            []Step   `json:"steps"`
	AffirmativeCount int      `json:"affirmativeCount"`
	NegativeCount    int      `json:"negativeCount"`
	DebaterNames     []string `json:"debaterNames,omitempty"`
	EnableDebaters   bool     `json:"enableDebaters"`
}

// Edits 是使用者對模板的修改
type Edits struct {
	RoomID           string   `json:"roomId,omitempty"`
	Steps            []Step   `json:"steps,omitempty"`
	AffirmativeCount int      `json:"affirmativeCount"`
	NegativeCount    int      `json:"negativeCount"`
	DebaterNames     []string `json:"debaterNames,omitempty"`
	EnableDebaters   bool     `json:"enableDebaters"`
}

// BuildConfig 把模板與使用者的修改組合成設定
func BuildConfig(t Template, e Edits) (Config, error) {
	source := t.Steps
	if len(e.Steps) > 0 {
		source = e.Steps
	}
	cfg := Config{
		RoomID:           e.RoomID,
		TemplateName:     t.Name,
		Steps:            NormalizeSteps(source),
		AffirmativeCount: e.AffirmativeCount,
		NegativeCount:    e.NegativeCount,
		DebaterNames:     append([]string(nil), e.DebaterNames...),
		EnableDebaters:   e.EnableDebaters,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NormalizeSteps 複製階段列表，沒有 ID 的階段依位置補上 step-N
func NormalizeSteps(source []Step) []Step {
	steps := make([]Step, len(source))
	copy(steps, source)
	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = fmt.Sprintf("step-%d", i+1)
		}
	}
	return steps
}

// Validate 檢查設定是否可以開始一場辯論
func (c Config) Validate() error {
	if err := validateSteps(c.Steps); err != nil {
		return err
	}
	if c.AffirmativeCount < 0 || c.AffirmativeCount > MaxTeamSize ||
		c.NegativeCount < 0 || c.NegativeCount > MaxTeamSize {
		return fmt.Errorf("%w: team size must be between 0 and %d", ErrInvalidConfig, MaxTeamSize)
	}
	seen := make(map[string]bool, len(c.Steps))
	for _, s := range c.Steps {
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate step id %q", ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// TeamLabels 依階段中使用的標籤決定正反方名稱（긍정/부정 或 찬성/반대）
func TeamLabels(steps []Step) (affirmative, negative Team) {
	affirmative, negative = TeamFor, TeamAgainst
	for _, s := range steps {
		switch s.Team {
		case TeamPositive:
			affirmative = TeamPositive
		case TeamNegative:
			negative = TeamNegative
		}
	}
	return affirmative, negative
}

// NewRunState 依設定建立初始狀態
func NewRunState(c Config) RunState {
	aff, neg := TeamLabels(c.Steps)

	var debaters []Speaker
	if c.EnableDebaters {
		debaters = make([]Speaker, 0, c.AffirmativeCount+c.NegativeCount)
		for i := 0; i < c.AffirmativeCount; i++ {
			debaters = append(debaters, Speaker{
				ID:   fmt.Sprintf("aff-%d", i),
				Name: nameOr(c.DebaterNames, i, fmt.Sprintf("%s%d", aff, i+1)),
				Team: aff,
			})
		}
		for i := 0; i < c.NegativeCount; i++ {
			debaters = append(debaters, Speaker{
				ID:   fmt.Sprintf("neg-%d", i),
				Name: nameOr(c.DebaterNames, c.AffirmativeCount+i, fmt.Sprintf("%s%d", neg, i+1)),
				Team: neg,
			})
		}
	} else {
		// 只計隊伍時間時，每隊用一個代表來持有發言權
		debaters = []Speaker{
			{ID: "aff-team", Name: string(aff) + "팀", Team: aff},
			{ID: "neg-team", Name: string(neg) + "팀", Team: neg},
		}
	}

	budget := 0
	for _, s := range c.Steps {
		if s.IsFreeDebate() {
			budget = s.Time / 2
			break
		}
	}

	steps := make([]Step, len(c.Steps))
	copy(steps, c.Steps)
	st := RunState{
		Steps:             steps,
		TrackSpeakers:     c.EnableDebaters,
		Debaters:          debaters,
		TeamRemainingTime: map[Team]int{aff: budget, neg: budget},
	}
	if len(steps) > 0 {
		st.RemainingTime = steps[0].Time
	}
	return st
}

func nameOr(names []string, i int, fallback string) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fallback
}
