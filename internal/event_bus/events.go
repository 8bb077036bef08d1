package event_bus

const (
	UserCreatedType EventType = "user.created"
)

type UserCreated struct {
	Uid      string
	Username string
}
