package debate

// Transition 是對 RunState 的純函數轉換。
// 被拒絕的轉換必須原樣回傳輸入，讓上層偵測到沒有變化而不廣播。
type Transition func(RunState) (RunState, []Notice)

// Tick 推進一秒：
//   (a) 階段時間減一，歸零時停止計時並發出階段結束提示
//   (b) 自由辯論中發言隊伍的剩餘時間減一
//   (c) 發言者的本次發言時間減一，累計發言時間加一
// 自由辯論沒有人持有發言權時，時間不流逝。
func Tick(prev RunState) (RunState, []Notice) {
	if !prev.IsRunning {
		return prev, nil
	}
	step, ok := prev.CurrentStep()
	if !ok {
		return prev, nil
	}
	free := step.IsFreeDebate()
	if free && prev.ActiveSpeakingTeam == TeamNone && prev.CurrentSpeakerID == "" {
		return prev, nil
	}

	next := prev.Clone()
	var notices []Notice

	if next.RemainingTime > 0 {
		next.RemainingTime--
		if next.RemainingTime == 0 {
			next.IsRunning = false
			notices = append(notices, phaseEnded(step))
		}
	}

	if free && next.ActiveSpeakingTeam != TeamNone {
		team := next.ActiveSpeakingTeam
		if left := next.TeamRemainingTime[team]; left > 0 {
			next.TeamRemainingTime[team] = left - 1
			if left-1 == 0 {
				notices = append(notices, teamBudgetEnded(team))
			}
		}
	}

	if sp, ok := prev.CurrentSpeaker(); ok && prev.SpeakerTimeRemaining > 0 {
		next.SpeakerTimeRemaining--
		for i := range next.Debaters {
			if next.Debaters[i].ID == sp.ID {
				next.Debaters[i].TotalSpeakTime++
			}
		}
		if next.SpeakerTimeRemaining == 0 {
			notices = append(notices, speakerTurnEnded(sp))
			if free {
				next.clearFloor()
			}
		}
	}

	return next, notices
}
