package agent

// selectTask draws one task with probability proportional to its
// effective weight. If every effective weight is zero the draw falls
// back to uniform, so a configured agent never goes idle on a weight
// configuration quirk.
func (a *Agent) selectTask() (Task, bool) {
	if len(a.tasks) == 0 {
		return Task{}, false
	}

	weights := make([]float64, len(a.tasks))
	total := 0.0
	for i, task := range a.tasks {
		weights[i] = a.effectiveWeight(task)
		total += weights[i]
	}

	if total <= 0 {
		return a.tasks[a.rng.Intn(len(a.tasks))], true
	}

	r := a.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return a.tasks[i], true
		}
	}
	return a.tasks[len(a.tasks)-1], true
}

// effectiveWeight applies the hour-of-day multipliers to a task's
// static weight: posting is damped during night hours [1,5), engagement
// is boosted during day hours [8,20). Uncategorized tasks pass through.
func (a *Agent) effectiveWeight(task Task) float64 {
	w := task.Weight
	if a.multipliers == nil {
		return w
	}

	hour := a.now().Hour()
	switch task.Category {
	case CategoryPost:
		if hour >= 1 && hour < 5 {
			w *= a.multipliers.TweetNightMultiplier
		}
	case CategoryEngage:
		if hour >= 8 && hour < 20 {
			w *= a.multipliers.EngagementDayMultiplier
		}
	}
	return w
}
