package component

import "context"

// ButtonInterface reads push buttons.
type ButtonInterface interface {
	GetButtonState(identifier int) (bool, error)
	// WaitUntilButtonPressed blocks until the button is pressed or ctx is done.
	WaitUntilButtonPressed(ctx context.Context, identifier int) error
}

// Button is a push button.
type Button struct {
	id      int
	backend ButtonInterface
}

func NewButton(identifier int, backend ButtonInterface) *Button {
	return &Button{id: identifier, backend: backend}
}

func (b *Button) Identifier() int { return b.id }

func (b *Button) IsPressed() (bool, error) {
	return b.backend.GetButtonState(b.id)
}

func (b *Button) WaitUntilPressed(ctx context.Context) error {
	return b.backend.WaitUntilButtonPressed(ctx, b.id)
}
