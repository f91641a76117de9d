package agent

// Turn is one remembered conversation entry.
type Turn struct {
	Role    string
	Content string
}

// Memory is a bounded, ordered turn buffer. Once capacity is reached the
// oldest turn is evicted first. It is not safe for concurrent use; the
// owning agent serializes access.
type Memory struct {
	capacity int
	turns    []Turn
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) Append(role, content string) {
	m.turns = append(m.turns, Turn{Role: role, Content: content})
	if len(m.turns) > m.capacity {
		m.turns = m.turns[len(m.turns)-m.capacity:]
	}
}

func (m *Memory) Turns() []Turn {
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

func (m *Memory) Len() int {
	return len(m.turns)
}

func (m *Memory) Capacity() int {
	return m.capacity
}
