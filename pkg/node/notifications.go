package node

import "context"

// GetUnreadNotificationsCount returns the unread count and the index of the
// newest unread notification.
func (c *Client) GetUnreadNotificationsCount(ctx context.Context, publicKey string) (*UnreadNotificationsCount, error) {
	var out UnreadNotificationsCount
	body := map[string]string{"PublicKeyBase58Check": publicKey}
	if err := c.lookup(ctx, "get-unread-notifications-count", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetNotificationMetadata stores the user's last seen notification index.
// The request must carry a JWT issued by the identity provider.
func (c *Client) SetNotificationMetadata(ctx context.Context, md NotificationMetadata) error {
	return c.post(ctx, "set-notification-metadata", md, nil)
}
