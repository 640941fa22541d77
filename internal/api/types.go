package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mwangaza12/meditime/internal/appointment"
	"github.com/mwangaza12/meditime/internal/complaint"
	"github.com/mwangaza12/meditime/internal/user"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type CreateAppointmentRequest struct {
	UserID          string `json:"userId,omitempty"` // admins only
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
	TimeSlot        string `json:"timeSlot"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	AppointmentDate string `json:"appointmentDate"`
	TimeSlot        string `json:"timeSlot"`
}

type PartyResponse struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Specialization *string `json:"specialization,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"userId"`
	DoctorID        uuid.UUID      `json:"doctorId"`
	AppointmentDate string         `json:"appointmentDate"`
	TimeSlot        string         `json:"timeSlot"`
	DurationMinutes int            `json:"durationMinutes"`
	Status          string         `json:"status"`
	TotalAmount     *float64       `json:"totalAmount"`
	IsPaid          bool           `json:"isPaid"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	User            *PartyResponse `json:"user,omitempty"`
	Doctor          *PartyResponse `json:"doctor,omitempty"`
}

type CreateComplaintRequest struct {
	AppointmentID *string `json:"appointmentId,omitempty"`
	Subject       string  `json:"subject"`
	Description   string  `json:"description"`
}

type ComplaintResponse struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	AppointmentID *uuid.UUID `json:"appointmentId"`
	Subject       string     `json:"subject"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type ReplyRequest struct {
	Message string `json:"message"`
}

type ReplyResponse struct {
	ID          uuid.UUID  `json:"id"`
	ComplaintID uuid.UUID  `json:"complaintId"`
	SenderID    *uuid.UUID `json:"senderId"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
	}
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		UserID:          a.UserID,
		DoctorID:        a.DoctorID,
		AppointmentDate: a.AppointmentDate.Format(appointment.DateLayout),
		TimeSlot:        a.TimeSlot,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		TotalAmount:     a.TotalAmount,
		IsPaid:          a.IsPaid,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toDetailResponse(d *appointment.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(&d.Appointment)
	resp.User = &PartyResponse{FirstName: d.Patient.FirstName, LastName: d.Patient.LastName}
	resp.Doctor = &PartyResponse{
		FirstName:      d.Doctor.FirstName,
		LastName:       d.Doctor.LastName,
		Specialization: d.Doctor.Specialization,
	}
	return resp
}

func toDetailResponses(list []appointment.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toDetailResponse(&list[i]))
	}
	return out
}

func toComplaintResponse(c *complaint.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:            c.ID,
		UserID:        c.UserID,
		AppointmentID: c.AppointmentID,
		Subject:       c.Subject,
		Description:   c.Description,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toReplyResponse(r *complaint.Reply) ReplyResponse {
	return ReplyResponse{
		ID:          r.ID,
		ComplaintID: r.ComplaintID,
		SenderID:    r.SenderID,
		Message:     r.Message,
		CreatedAt:   r.CreatedAt,
	}
}
