package core

import "sync"

// EventCode identifies one event stream. System codes stay below 255;
// applications register their own above it.
type EventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01

	// Keyboard key pressed. Data is *KeyEvent.
	EVENT_CODE_KEY_PRESSED EventCode = 0x02

	// Keyboard key released. Data is *KeyEvent.
	EVENT_CODE_KEY_RELEASED EventCode = 0x03

	// Mouse button pressed. Data is *MouseEvent.
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04

	// Mouse button released. Data is *MouseEvent.
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05

	// Mouse moved. Data is *MouseEvent.
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06

	// Mouse wheel. Data is *MouseEvent.
	EVENT_CODE_MOUSE_WHEEL EventCode = 0x07

	// Window resized or minimized. Data is *SystemEvent.
	EVENT_CODE_RESIZED EventCode = 0x08

	MAX_EVENT_CODE EventCode = 0xFF
)

// KeyEvent travels with key press/release codes.
type KeyEvent struct {
	KeyCode KeyCode
}

// MouseEvent travels with every mouse code; only the fields relevant to the
// code are filled.
type MouseEvent struct {
	Button Button
	PosX   uint16
	PosY   uint16
	Scroll int8
}

// SystemEvent travels with window-level codes.
type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

// EventContext is what listeners receive: the code it fired under plus the
// code-specific payload.
type EventContext struct {
	Type EventCode
	Data interface{}
}

// FnOnEvent handles one fired event.
type FnOnEvent func(context EventContext)

type eventSystemState struct {
	mu         sync.RWMutex
	registered map[EventCode][]FnOnEvent
}

var (
	onceEvent     sync.Once
	isInitialized bool
	eventState    *eventSystemState
)

func EventInitialize() bool {
	if isInitialized {
		return false
	}
	onceEvent.Do(func() {
		eventState = &eventSystemState{
			registered: make(map[EventCode][]FnOnEvent),
		}
	})
	isInitialized = true
	return true
}

func EventShutdown() error {
	if eventState != nil {
		eventState.mu.Lock()
		eventState.registered = make(map[EventCode][]FnOnEvent)
		eventState.mu.Unlock()
	}
	isInitialized = false
	return nil
}

// EventRegister subscribes a handler to a code. Handlers run synchronously
// in registration order when the code fires.
func EventRegister(code EventCode, onEvent FnOnEvent) bool {
	if !isInitialized {
		return false
	}
	eventState.mu.Lock()
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	eventState.mu.Unlock()
	return true
}

// EventFire delivers the context to every listener registered for its Type.
func EventFire(context EventContext) bool {
	if !isInitialized {
		return false
	}
	eventState.mu.RLock()
	listeners := eventState.registered[context.Type]
	eventState.mu.RUnlock()

	for _, fn := range listeners {
		fn(context)
	}
	return len(listeners) > 0
}
