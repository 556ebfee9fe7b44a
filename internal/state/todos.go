package state

// Чистые функции переходов над кешем списка дел. Каждая получает текущий
// срез и подтверждённый сервером результат и возвращает новый срез, не
// изменяя исходный. Сетевой слой сюда не заглядывает.

// ReplaceAll заменяет кеш целиком ответом сервера, сохраняя его порядок.
func ReplaceAll(_ []Todo, fresh []Todo) []Todo {
	next := make([]Todo, len(fresh))
	copy(next, fresh)
	return next
}

// Prepend ставит созданную сервером запись в начало списка.
func Prepend(todos []Todo, created Todo) []Todo {
	next := make([]Todo, 0, len(todos)+1)
	next = append(next, created)
	next = append(next, todos...)
	return next
}

// ReplaceByID заменяет запись с совпадающим ID на месте, сохраняя позицию.
// Если записи с таким ID нет, список возвращается без изменений.
func ReplaceByID(todos []Todo, updated Todo) []Todo {
	next := make([]Todo, len(todos))
	copy(next, todos)
	for i := range next {
		if next[i].ID == updated.ID {
			next[i] = updated
			break
		}
	}
	return next
}

// RemoveByID удаляет запись с совпадающим ID, сохраняя относительный
// порядок остальных. Отсутствующий ID — no-op.
func RemoveByID(todos []Todo, id int) []Todo {
	next := make([]Todo, 0, len(todos))
	for _, todo := range todos {
		if todo.ID == id {
			continue
		}
		next = append(next, todo)
	}
	return next
}

// Filtered возвращает записи, проходящие фильтр главного окна.
func Filtered(todos []Todo, filter TodoFilter) []Todo {
	switch filter {
	case FilterActive:
		result := make([]Todo, 0, len(todos))
		for _, todo := range todos {
			if !todo.Completed {
				result = append(result, todo)
			}
		}
		return result
	case FilterCompleted:
		result := make([]Todo, 0, len(todos))
		for _, todo := range todos {
			if todo.Completed {
				result = append(result, todo)
			}
		}
		return result
	default:
		return todos
	}
}

// CountCompleted возвращает число завершённых записей.
func CountCompleted(todos []Todo) int {
	n := 0
	for _, todo := range todos {
		if todo.Completed {
			n++
		}
	}
	return n
}
