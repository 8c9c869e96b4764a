package entity

// Profile scopes a code to one kind of account sharing an email address.
// The zero value is the unscoped profile.
type Profile string

const (
	ProfileNone     Profile = ""
	ProfileCustomer Profile = "customer"
	ProfileMerchant Profile = "merchant"
	ProfileDelivery Profile = "delivery"
)

// Owner identifies whose code a record holds.
type Owner struct {
	Email   string
	Profile Profile
}

// Key is the store key of the owner's record: the email alone for the
// unscoped profile, "email|profile" otherwise.
func (o Owner) Key() string {
	return RecordKey(o.Email, o.Profile)
}

func RecordKey(email string, profile Profile) string {
	if profile == ProfileNone {
		return email
	}
	return email + "|" + string(profile)
}
