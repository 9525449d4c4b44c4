package bookings

type ListBookingsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
