package types

// ChannelProfile is the aggregated public view of a user's channel:
// identity plus derived subscription counts and the viewer's own
// membership flag. Password and session fields never appear here.
type ChannelProfile struct {
	ID                int    `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	FullName          string `json:"full_name"`
	AvatarURL         string `json:"avatar_url"`
	CoverURL          string `json:"cover_url"`
	TotalSubscribers  int    `json:"total_subscribers"`
	TotalSubscribedTo int    `json:"total_subscribed_to"`
	IsSubscribed      bool   `json:"is_subscribed"`
}
