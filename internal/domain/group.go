package domain

// Uncategorized labels the group of tasks with an empty category.
const Uncategorized = "Uncategorized"

// DefaultCategories are offered as suggestions next to the categories in use.
var DefaultCategories = []string{"Work", "Personal", "Shopping", "Health", "Study"}

func Active(tasks []Task) []Task {
	return filter(tasks, func(t Task) bool { return !t.IsCompleted })
}

func Completed(tasks []Task) []Task {
	return filter(tasks, func(t Task) bool { return t.IsCompleted })
}

func filter(tasks []Task, keep func(Task) bool) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

type CategoryGroup struct {
	Category string
	Tasks    []Task
}

// GroupByCategory groups tasks in first-seen order, keeping the input order
// within each group.
func GroupByCategory(tasks []Task) []CategoryGroup {
	var groups []CategoryGroup
	index := map[string]int{}
	for _, t := range tasks {
		label := t.Category
		if label == "" {
			label = Uncategorized
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, CategoryGroup{Category: label})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}
	return groups
}
