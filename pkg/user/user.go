package user

import "time"

// User is a device-scoped identity. Uid is the device id sent by the client and owns events.
type User struct {
	Id         int
	Uid        string
	Username   string
	CreatedAt  time.Time
	LastActive time.Time
}
