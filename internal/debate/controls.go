package debate

// TeamTimeAdjustStep 手動修正隊伍時間時，每次增減的秒數
const TeamTimeAdjustStep = 10

// TogglePlay 切換計時狀態，辯論結束後無效
func TogglePlay(prev RunState) (RunState, []Notice) {
	if prev.Ended() {
		return prev, nil
	}
	next := prev.Clone()
	next.IsRunning = !prev.IsRunning
	return next, nil
}

// ResetStep 把當前階段恢復成設定的時間並暫停
func ResetStep(prev RunState) (RunState, []Notice) {
	step, ok := prev.CurrentStep()
	if !ok {
		return prev, nil
	}
	next := prev.Clone()
	next.RemainingTime = step.Time
	next.SpeakerTimeRemaining = step.MaxSpeakTime
	next.IsRunning = false
	next.clearFloor()
	return next, nil
}

// ChangeStep 跳到指定階段。index 等於階段數時代表辯論結束。
func ChangeStep(index int) Transition {
	return func(prev RunState) (RunState, []Notice) {
		if index < 0 || index > len(prev.Steps) {
			return prev, nil
		}
		next := prev.Clone()
		next.IsRunning = false
		next.clearFloor()
		next.SpeakerTimeRemaining = 0
		next.CurrentStepIndex = index
		if index == len(prev.Steps) {
			next.RemainingTime = 0
			if prev.Ended() {
				return next, nil
			}
			return next, []Notice{debateEnded()}
		}
		next.RemainingTime = prev.Steps[index].Time
		return next, nil
	}
}

// NextStep 前進到下一個階段，最後一個階段之後即結束辯論
func NextStep(prev RunState) (RunState, []Notice) {
	if prev.Ended() {
		return prev, nil
	}
	return ChangeStep(prev.CurrentStepIndex + 1)(prev)
}

// PrevStep 回到上一個階段
func PrevStep(prev RunState) (RunState, []Notice) {
	return ChangeStep(prev.CurrentStepIndex - 1)(prev)
}

// turnLimit 單次發言上限；沒有設定上限時以階段時間為準，而不是零秒的發言，實際長度仍受隊伍剩餘時間限制
func turnLimit(step Step) int {
	if step.MaxSpeakTime > 0 {
		return step.MaxSpeakTime
	}
	return step.Time
}

// handOver 同隊換人時保留進行中的發言時間，否則重新計算為 min(上限, 隊伍剩餘)
func handOver(prev RunState, next *RunState, sp Speaker, step Step) {
	budget := prev.TeamRemainingTime[sp.Team]
	current, hasCurrent := prev.CurrentSpeaker()
	sameTeam := hasCurrent && current.Team == sp.Team
	if !sameTeam || prev.SpeakerTimeRemaining == 0 {
		next.SpeakerTimeRemaining = min(turnLimit(step), budget)
	}
	next.giveFloor(sp)
}

// SelectTeam 只計隊伍時間模式下，把發言權交給某一隊（再次點選則收回）
func SelectTeam(team Team) Transition {
	return func(prev RunState) (RunState, []Notice) {
		if prev.TrackSpeakers {
			return prev, nil
		}
		step, ok := prev.CurrentStep()
		if !ok || !step.IsFreeDebate() {
			return prev, nil
		}
		if _, known := prev.TeamRemainingTime[team]; !known {
			return prev, nil
		}
		if prev.ActiveSpeakingTeam == team {
			next := prev.Clone()
			next.clearFloor()
			next.SpeakerTimeRemaining = 0
			return next, nil
		}
		if prev.TeamRemainingTime[team] <= 0 {
			return prev, []Notice{budgetExhausted(team)}
		}
		var placeholder *Speaker
		for i := range prev.Debaters {
			if prev.Debaters[i].Team == team {
				placeholder = &prev.Debaters[i]
				break
			}
		}
		if placeholder == nil {
			return prev, nil
		}
		next := prev.Clone()
		handOver(prev, &next, *placeholder, step)
		return next, nil
	}
}

// SelectSpeaker 個人計時模式下指定發言者，只在自由辯論中有效
func SelectSpeaker(id string) Transition {
	return func(prev RunState) (RunState, []Notice) {
		if !prev.TrackSpeakers {
			return prev, nil
		}
		step, ok := prev.CurrentStep()
		if !ok || !step.IsFreeDebate() {
			return prev, nil
		}
		sp, ok := prev.Speaker(id)
		if !ok {
			return prev, nil
		}
		if prev.CurrentSpeakerID == id {
			next := prev.Clone()
			next.clearFloor()
			next.SpeakerTimeRemaining = 0
			return next, nil
		}
		if prev.TeamRemainingTime[sp.Team] <= 0 {
			return prev, []Notice{budgetExhausted(sp.Team)}
		}
		next := prev.Clone()
		handOver(prev, &next, sp, step)
		return next, nil
	}
}

// AdjustTeamTime 修正隊伍剩餘時間，每單位 10 秒，範圍為 0 到自由辯論時間的一半
func AdjustTeamTime(team Team, units int) Transition {
	return func(prev RunState) (RunState, []Notice) {
		step, ok := prev.CurrentStep()
		if !ok || !step.IsFreeDebate() {
			return prev, nil
		}
		old, known := prev.TeamRemainingTime[team]
		if !known {
			return prev, nil
		}
		updated := max(0, min(step.Time/2, old+units*TeamTimeAdjustStep))
		if updated == old {
			return prev, nil
		}
		next := prev.Clone()
		next.TeamRemainingTime[team] = updated
		return next, nil
	}
}
