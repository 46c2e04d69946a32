package debate

// StepType 定義辯論階段的類型
type StepType string

const (
	StepOpening        StepType = "입론"
	StepFreeDebate     StepType = "자유토론"
	StepDeliberation   StepType = "숙의시간"
	StepClosing        StepType = "마무리 발언"
	StepCrossExam      StepType = "교차질의"
	StepRebuttal       StepType = "반론"
	StepModerator      StepType = "사회자 인사"
	StepAudiencePoll   StepType = "청중 사전 투표"
	StepAudienceQA     StepType = "청중 질문"
	StepPanelQA        StepType = "패널 질문"
	StepResultAnnounce StepType = "결과 발표"
)

var knownStepTypes = map[StepType]bool{
	StepOpening:        true,
	StepFreeDebate:     true,
	StepDeliberation:   true,
	StepClosing:        true,
	StepCrossExam:      true,
	StepRebuttal:       true,
	StepModerator:      true,
	StepAudiencePoll:   true,
	StepAudienceQA:     true,
	StepPanelQA:        true,
	StepResultAnnounce: true,
}

// Valid 檢查階段類型是否為已知類型
func (t StepType) Valid() bool {
	return knownStepTypes[t]
}

// Team 表示正反兩方的標籤，空字串代表不屬於任何一方
type Team string

const (
	TeamNone     Team = ""
	TeamFor      Team = "찬성"
	TeamAgainst  Team = "반대"
	TeamPositive Team = "긍정"
	TeamNegative Team = "부정"
)

// Valid 檢查隊伍標籤
func (t Team) Valid() bool {
	switch t {
	case TeamNone, TeamFor, TeamAgainst, TeamPositive, TeamNegative:
		return true
	}
	return false
}

// Affirmative 回報是否為正方（찬성 或 긍정）
func (t Team) Affirmative() bool {
	return t == TeamFor || t == TeamPositive
}

// Step 是腳本中的一個階段，開始後不可變
type Step struct {
	ID           string   `json:"id" yaml:"id"`
	Type         StepType `json:"type" yaml:"type"`
	Time         int      `json:"time" yaml:"time"` // 秒
	Team         Team     `json:"team,omitempty" yaml:"team,omitempty"`
	MaxSpeakTime int      `json:"maxSpeakTime,omitempty" yaml:"maxSpeakTime,omitempty"` // 每次發言上限（秒），0 表示沒有
}

// IsFreeDebate 自由辯論階段的發言權是動態決定的
func (s Step) IsFreeDebate() bool {
	return s.Type == StepFreeDebate
}

// Speaker 表示一位辯手，或在只計隊伍時間模式下的隊伍代表
type Speaker struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Team           Team   `json:"team"`
	TotalSpeakTime int    `json:"totalSpeakTime"`
	IsSpeaking     bool   `json:"isSpeaking"`
}
