package types

import (
	"time"
)

type UserRole string

const (
	RoleClient     UserRole = "client"
	RoleFreelancer UserRole = "freelancer"
	RoleAdmin      UserRole = "admin"
)

// Counterpart returns the role a user of the given role converses with:
// clients message freelancers and vice versa.
func (r UserRole) Counterpart() UserRole {
	if r == RoleClient {
		return RoleFreelancer
	}
	return RoleClient
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
	StatusAway    PresenceStatus = "away"
)

type User struct {
	Id        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Role      UserRole `json:"role"`
	Avatar    string   `json:"avatar,omitempty"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type Message struct {
	Id          string    `json:"id"`
	Content     string    `json:"content"`
	SenderId    string    `json:"sender_id"`
	RecipientId string    `json:"recipient_id"`
	CreatedAt   time.Time `json:"createdAt"`
	IsRead      bool      `json:"isRead"`
	Sender      User      `json:"sender"`
	Recipient   User      `json:"recipient"`
}

// CreateMessage is the payload for sending a new message.
type CreateMessage struct {
	Content     string `json:"content"`
	RecipientId string `json:"recipient_id"`
}

// MessageUpdate carries the mutable fields of a message for an edit.
type MessageUpdate struct {
	Content string `json:"content"`
	IsRead  bool   `json:"isRead"`
}

type ProjectBudget struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Project struct {
	Id     string        `json:"id"`
	Title  string        `json:"title"`
	Budget ProjectBudget `json:"budget"`
	Status string        `json:"status"`
}

type Bid struct {
	Id           string    `json:"id"`
	ProjectId    string    `json:"projectId"`
	FreelancerId string    `json:"freelancerId"`
	Amount       float64   `json:"amount"`
	CoverLetter  string    `json:"coverLetter"`
	DeliveryTime string    `json:"deliveryTime"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

type ContractStage string

const (
	StageProposal  ContractStage = "proposal"
	StageApproval  ContractStage = "approval"
	StagePayment   ContractStage = "payment"
	StageReview    ContractStage = "review"
	StageCompleted ContractStage = "completed"
)

type Milestone struct {
	Id            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Amount        float64   `json:"amount"`
	DueDate       time.Time `json:"dueDate"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

type Contract struct {
	Id           string        `json:"id"`
	ProjectId    string        `json:"projectId"`
	ClientId     string        `json:"clientId"`
	FreelancerId string        `json:"freelancerId"`
	Amount       float64       `json:"amount"`
	Stage        ContractStage `json:"stage"`
	Milestones   []Milestone   `json:"milestones"`
	StartDate    time.Time     `json:"startDate"`
	EndDate      time.Time     `json:"endDate,omitempty"`
	CreatedAt    time.Time     `json:"createdAt,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt,omitempty"`
}
