package models

type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Content   string    `json:"content"`
	Image     []string  `json:"image"`
	Reactions []string  `json:"reactions"`
	Privacy   string    `json:"privacy"`
	Date      string    `json:"date"`
	Comments  []Comment `json:"comments"`
}

type Comment struct {
	UserID  int64  `json:"userId"`
	Content string `json:"content"`
	Date    string `json:"date"`
}
