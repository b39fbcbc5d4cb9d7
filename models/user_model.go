package models

import (
	"encoding/json"
	"fmt"
)

type User struct {
	ID       int64            `json:"id"`
	Email    string           `json:"email"`
	Password string           `json:"password,omitempty"`
	Username string           `json:"username"`
	Phone    string           `json:"phone"`
	Role     string           `json:"role"`
	Avatar   string           `json:"avatar"`
	IsLocked bool             `json:"isLocked"`
	Friends  []FriendRelation `json:"friends"`
	Notify   []Notification   `json:"notify"`
}

// FriendRelation is one direction of a friendship. Both users hold a
// mirrored entry; Status flips to true on both sides when the request
// is accepted.
type FriendRelation struct {
	UserID int64  `json:"userId"`
	Status bool   `json:"status"`
	Date   string `json:"date"`
}

// Notification is stored on the wire as a [from, message, date] string
// triple, which is all the backend has ever held for pending friend
// requests.
type Notification struct {
	From    string
	Message string
	Date    string
}

func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{n.From, n.Message, n.Date})
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var tuple []string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 3 {
		return fmt.Errorf("notification: expected 3 elements, got %d", len(tuple))
	}
	n.From, n.Message, n.Date = tuple[0], tuple[1], tuple[2]
	return nil
}

// UserInfo is the denormalized projection of a User kept by the posts
// state for rendering post authorship without a full user fetch.
type UserInfo struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}
