// Package jwt issues and verifies the RS256 bearer tokens that carry the
// acting user and their role.
//
//	service, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "keys/private.pem",
//	    Issuer:         "craftlink",
//	    ExpirationMins: 60,
//	})
//
//	token, err := service.Issue("user:alice", "client")
//	claims, err := service.Validate(token)
//
// Services that only verify tokens load PublicKeyPath instead.
package jwt
