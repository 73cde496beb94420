package subdomain

import "strings"

var reserved = map[string]struct{}{
	"www": {}, "devicegalaxy": {}, "mail": {}, "ftp": {}, "api": {},
	"admin": {}, "dashboard": {}, "app": {}, "dev": {}, "staging": {},
	"test": {}, "docs": {}, "status": {}, "internal": {}, "support": {},
	"help": {}, "blog": {}, "shop": {}, "forum": {}, "news": {}, "static": {},
	"media": {}, "images": {}, "video": {}, "videos": {}, "cdn": {}, "beta": {},
	"alpha": {}, "root": {}, "system": {}, "secure": {}, "login": {},
	"signin": {}, "signup": {}, "register": {}, "account": {}, "accounts": {},
	"user": {}, "users": {}, "profile": {}, "settings": {}, "billing": {},
	"payment": {}, "payments": {}, "invoice": {}, "invoices": {},
	"subscribe": {}, "subscription": {}, "subscriptions": {}, "unsubscribe": {},
	"contact": {}, "feedback": {},
}

// IsReserved reports whether name is kept back for the service itself.
func IsReserved(name string) bool {
	_, ok := reserved[strings.ToLower(name)]
	return ok
}
