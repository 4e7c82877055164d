package domain

import (
	"encoding/json"
	"fmt"
)

// Теги конверта управляющего канала.
const (
	ControlTypeInput      = "input"
	ControlTypeGetScreens = "system:get_screens"
	ControlTypeScreenInfo = "system:screen_info"
	ControlTypeCommand    = "control"

	CommandSwitchScreen = "switch_screen"
)

// Типы событий ввода.
const (
	EventMouseMove  = "mousemove"
	EventMouseDown  = "mousedown"
	EventMouseUp    = "mouseup"
	EventMouseWheel = "mousewheel"
	EventKeyDown    = "keydown"
	EventKeyUp      = "keyup"
)

// ErrUnknownControl возвращается при неизвестном теге конверта.
// Получатель логирует и отбрасывает сообщение, канал остается открытым.
var ErrUnknownControl = fmt.Errorf("unknown control message type")

// ControlMessage - конверт для всех сообщений управляющего канала.
type ControlMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InputEvent - событие ввода, пересылаемое от клиента хосту.
// Координаты X, Y нормализованы в [0,1] относительно текущего экрана.
type InputEvent struct {
	EventType string  `json:"eventType"`
	Key       string  `json:"key,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Button    string  `json:"button,omitempty"`
	Delta     float64 `json:"delta,omitempty"`
}

// ScreenDescriptor описывает один из экранов хоста.
type ScreenDescriptor struct {
	Index  int    `json:"index"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Label  string `json:"label"`
}

// Denormalize переводит нормализованные координаты [0,1] в пиксельные
// координаты этого экрана.
func (s ScreenDescriptor) Denormalize(x, y float64) (int, int) {
	return int(x * float64(s.Width)), int(y * float64(s.Height))
}

// Normalize переводит пиксельные координаты поверхности w x h в [0,1].
func Normalize(px, py, w, h int) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	return float64(px) / float64(w), float64(py) / float64(h)
}

// Command - generic-команда конверта "control".
type Command struct {
	Command string `json:"command"`
	Value   int    `json:"value"`
}

// Control - типизированное представление сообщения управляющего канала.
// Конверт декодируется в union один раз на границе, дальше ядро работает
// только с типизированными значениями.
type Control interface {
	controlType() string
}

type InputControl struct {
	Event InputEvent
}

type GetScreensControl struct{}

type ScreenInfoControl struct {
	Screens []ScreenDescriptor
}

type SwitchScreenControl struct {
	Index int
}

func (InputControl) controlType() string        { return ControlTypeInput }
func (GetScreensControl) controlType() string   { return ControlTypeGetScreens }
func (ScreenInfoControl) controlType() string   { return ControlTypeScreenInfo }
func (SwitchScreenControl) controlType() string { return ControlTypeCommand }

// EncodeControl упаковывает типизированное сообщение в конверт.
func EncodeControl(c Control) ([]byte, error) {
	var payload any

	switch v := c.(type) {
	case InputControl:
		payload = v.Event
	case GetScreensControl:
		payload = nil
	case ScreenInfoControl:
		payload = v.Screens
	case SwitchScreenControl:
		payload = Command{Command: CommandSwitchScreen, Value: v.Index}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownControl, c)
	}

	msg := ControlMessage{Type: c.controlType()}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal control payload: %w", err)
		}
		msg.Payload = raw
	}

	return json.Marshal(msg)
}

// DecodeControl разбирает конверт в типизированное сообщение.
func DecodeControl(data []byte) (Control, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal control envelope: %w", err)
	}

	switch msg.Type {
	case ControlTypeInput:
		var ev InputEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal input event: %w", err)
		}
		return InputControl{Event: ev}, nil

	case ControlTypeGetScreens:
		return GetScreensControl{}, nil

	case ControlTypeScreenInfo:
		var screens []ScreenDescriptor
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &screens); err != nil {
				return nil, fmt.Errorf("unmarshal screen info: %w", err)
			}
		}
		return ScreenInfoControl{Screens: screens}, nil

	case ControlTypeCommand:
		var cmd Command
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			return nil, fmt.Errorf("unmarshal command: %w", err)
		}
		if cmd.Command != CommandSwitchScreen {
			return nil, fmt.Errorf("%w: control command %q", ErrUnknownControl, cmd.Command)
		}
		return SwitchScreenControl{Index: cmd.Value}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownControl, msg.Type)
}
