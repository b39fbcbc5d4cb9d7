package models

type Group struct {
	ID        int64         `json:"id"`
	GroupName string        `json:"groupName"`
	DateAt    string        `json:"dateAt"`
	Avatar    string        `json:"avatar"`
	Status    bool          `json:"status"`
	IsLocked  bool          `json:"isLocked"`
	Members   []GroupMember `json:"members"`
	PostGroup []GroupPost   `json:"postGroup"`
}

// GroupMember carries the admin flag as Role; the group creator is the
// only member with Role true in normal operation.
type GroupMember struct {
	UserID   int64  `json:"userId"`
	Role     bool   `json:"role"`
	DateJoin string `json:"dateJoin"`
}

type GroupPost struct {
	IDPostGroup int64     `json:"idPostGroup"`
	UserID      int64     `json:"userId"`
	Content     string    `json:"content"`
	Img         []string  `json:"img"`
	Dateat      string    `json:"dateat"`
	Likes       []string  `json:"likes,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`
}
