package chatclient

import (
	"sync"
	"time"
)

// TypingNotifier гасит поток нажатий клавиш до пары сигналов
// typing_start/typing_stop. Первое нажатие эмитит start; каждое следующее
// лишь переводит таймер бездействия, не дублируя сигнал; по истечении окна
// (или при явном Stop) эмитится stop.
type TypingNotifier struct {
	mu sync.Mutex

	window  time.Duration
	onStart func()
	onStop  func()

	active bool
	timer  *time.Timer
}

func NewTypingNotifier(window time.Duration, onStart, onStop func()) *TypingNotifier {
	return &TypingNotifier{
		window:  window,
		onStart: onStart,
		onStop:  onStop,
	}
}

func (t *TypingNotifier) Keystroke() {
	t.mu.Lock()

	if t.active {
		// Уже печатаем: только сдвигаем таймер
		t.timer.Reset(t.window)
		t.mu.Unlock()
		return
	}

	t.active = true
	t.timer = time.AfterFunc(t.window, t.expire)
	t.mu.Unlock()

	t.onStart()
}

// Stop эмитит typing_stop немедленно (например, сообщение отправлено)
func (t *TypingNotifier) Stop() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.timer.Stop()
	t.mu.Unlock()

	t.onStop()
}

func (t *TypingNotifier) expire() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.mu.Unlock()

	t.onStop()
}

// Active сообщает, идёт ли сейчас ввод (таймер не истёк)
func (t *TypingNotifier) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
