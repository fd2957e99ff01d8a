package types

// UserRole is the role of a team member
type UserRole string

const (
	RoleAdmin UserRole = "Admin"
	RoleAgent UserRole = "Agent"
)

// UserProfile is a team member as stored in the user directory
type UserProfile struct {
	UserID               string   `json:"uid" dynamodbav:"UserID"` // partition key
	Email                string   `json:"email" dynamodbav:"Email"`
	Name                 string   `json:"name" dynamodbav:"Name"`
	Role                 UserRole `json:"role" dynamodbav:"Role"`
	TeamID               string   `json:"teamId,omitempty" dynamodbav:"TeamID,omitempty"`
	ExtensionID          string   `json:"extensionId,omitempty" dynamodbav:"ExtensionID,omitempty"`
	AssignedPhoneNumbers []string `json:"assignedPhoneNumbers,omitempty" dynamodbav:"AssignedPhoneNumbers,omitempty,stringset"`
}

// CanUseCallerID reports whether number is one of the user's assigned numbers
func (u *UserProfile) CanUseCallerID(number string) bool {
	for _, n := range u.AssignedPhoneNumbers {
		if n == number {
			return true
		}
	}
	return false
}
