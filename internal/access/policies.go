package access

// Профиль: владелец строки - субъект (auth_principal_id).
func profilesPolicy(req Request) bool {
	switch req.Op {
	case OpSelect, OpInsert, OpUpdate:
		return req.OwnerID != "" && req.OwnerID == req.Principal.ID
	default:
		return false
	}
}

// Лайк: владелец строки - профиль вызывающего (user_id).
func likesPolicy(req Request) bool {
	switch req.Op {
	case OpSelect, OpInsert, OpDelete:
		return req.ProfileID != "" && req.OwnerID == req.ProfileID
	default:
		return false
	}
}

// Контент: только чтение, premium - при активной подписке.
func coursesPolicy(req Request) bool {
	if req.Op != OpSelect {
		return false
	}
	return !req.Premium || req.ActiveSubscription
}

// Состояние подписки пишет только реконсилятор; пользователь видит только своё.
func subscriptionStatesPolicy(req Request) bool {
	if req.Op != OpSelect {
		return false
	}
	return req.OwnerID != "" && req.OwnerID == req.Principal.ID
}

func processedEventsPolicy(_ Request) bool {
	return false
}
