package domain

import "time"

// BirthdayLayout es el formato en el que se guarda Contact.Birthday.
const BirthdayLayout = "2006-01-02"

// Contact pertenece siempre a un unico usuario (UserID).
type Contact struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Birthday  string    `json:"birthday"`
	Addition  string    `json:"addition"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactFields son los campos mutables de un contacto; Update los reemplaza todos.
type ContactFields struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Birthday  string
	Addition  string
}
