package models

import "directory/internal/directory/projection"

// Projection schemas. Field names match the JSON tags of the entities.
var (
	LocationSchema = projection.MustSchema(string(KindLocation),
		projection.Field[Location]{Name: FieldID, Get: func(l Location) any { return l.ID }},
		projection.Field[Location]{Name: FieldCity, Get: func(l Location) any { return l.City }},
	)

	ServiceSchema = projection.MustSchema(string(KindService),
		projection.Field[Service]{Name: FieldID, Get: func(s Service) any { return s.ID }},
		projection.Field[Service]{Name: FieldName, Get: func(s Service) any { return s.Name }},
	)

	WorkerSchema = projection.MustSchema(string(KindWorker),
		projection.Field[Worker]{Name: FieldID, Get: func(w Worker) any { return w.ID }},
		projection.Field[Worker]{Name: FieldFirstName, Get: func(w Worker) any { return w.FirstName }},
		projection.Field[Worker]{Name: FieldLastName, Get: func(w Worker) any { return w.LastName }},
		projection.Field[Worker]{Name: FieldEmail, Get: func(w Worker) any { return w.Email }},
		projection.Field[Worker]{Name: FieldPhoneFixed, Get: func(w Worker) any { return w.PhoneFixed }},
		projection.Field[Worker]{Name: FieldPhoneMobile, Get: func(w Worker) any { return w.PhoneMobile }},
		projection.Field[Worker]{Name: FieldLocationID, Get: func(w Worker) any { return w.LocationID }},
		projection.Field[Worker]{Name: FieldServiceID, Get: func(w Worker) any { return w.ServiceID }},
	)
)
