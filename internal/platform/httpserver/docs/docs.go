// Package docs registers the OpenAPI document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/orders/chain": {
            "post": {
                "description": "Admits a primary order with its reminders. Replaying an admitted idempotency id returns the original tracking handle.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Create a notification order chain",
                "parameters": [
                    {"type": "string", "description": "Authenticated creator", "name": "X-Creator", "in": "header", "required": true},
                    {"description": "Order chain", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateOrderChainRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.CreateOrderChainResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.CreateOrderChainResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ValidationErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "499": {"description": "Client Closed Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/orders/{order_id}/cancel": {
            "post": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Cancel a registered order",
                "parameters": [
                    {"type": "string", "description": "Authenticated creator", "name": "X-Creator", "in": "header", "required": true},
                    {"type": "string", "description": "Order id", "name": "order_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ShipmentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/shipments/{shipment_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["shipments"],
                "summary": "Get the delivery manifest of a shipment",
                "parameters": [
                    {"type": "string", "description": "Authenticated creator", "name": "X-Creator", "in": "header", "required": true},
                    {"type": "string", "description": "Shipment id", "name": "shipment_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ShipmentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/status-feed": {
            "get": {
                "description": "Returns entries with a sequence number above seq in ascending order. An empty page means the caller is caught up.",
                "produces": ["application/json"],
                "tags": ["status-feed"],
                "summary": "Read the status feed",
                "parameters": [
                    {"type": "string", "description": "Authenticated creator", "name": "X-Creator", "in": "header", "required": true},
                    {"type": "integer", "description": "Exclusive sequence cursor", "name": "seq", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.StatusFeedResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "http.FieldErrorDTO": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "http.ValidationErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/http.FieldErrorDTO"}}
            }
        },
        "http.EmailSettingsDTO": {
            "type": "object",
            "properties": {
                "senderEmailAddress": {"type": "string"},
                "subject": {"type": "string"},
                "body": {"type": "string"},
                "contentType": {"type": "string", "enum": ["Plain", "Html"]},
                "sendingTimePolicy": {"type": "string", "enum": ["Anytime", "Daytime"]}
            }
        },
        "http.SmsSettingsDTO": {
            "type": "object",
            "properties": {
                "sender": {"type": "string"},
                "body": {"type": "string"},
                "sendingTimePolicy": {"type": "string", "enum": ["Anytime", "Daytime"]}
            }
        },
        "http.RecipientDTO": {
            "description": "Exactly one variant must be populated.",
            "type": "object",
            "properties": {
                "recipientEmail": {"type": "object"},
                "recipientSms": {"type": "object"},
                "recipientPerson": {"type": "object"},
                "recipientOrganization": {"type": "object"},
                "recipientEmailAndSms": {"type": "object"}
            }
        },
        "http.ReminderDTO": {
            "type": "object",
            "properties": {
                "sendersReference": {"type": "string"},
                "conditionEndpoint": {"type": "string"},
                "delayDays": {"type": "integer"},
                "requestedSendTime": {"type": "string", "format": "date-time"},
                "recipient": {"$ref": "#/definitions/http.RecipientDTO"}
            }
        },
        "http.CreateOrderChainRequest": {
            "type": "object",
            "properties": {
                "idempotencyId": {"type": "string"},
                "sendersReference": {"type": "string"},
                "requestedSendTime": {"type": "string", "format": "date-time"},
                "conditionEndpoint": {"type": "string"},
                "dialogportenAssociation": {
                    "type": "object",
                    "properties": {
                        "dialogId": {"type": "string"},
                        "transmissionId": {"type": "string"}
                    }
                },
                "recipient": {"$ref": "#/definitions/http.RecipientDTO"},
                "reminders": {"type": "array", "items": {"$ref": "#/definitions/http.ReminderDTO"}}
            }
        },
        "http.ShipmentDTO": {
            "type": "object",
            "properties": {
                "shipmentId": {"type": "string"},
                "sendersReference": {"type": "string"}
            }
        },
        "http.CreateOrderChainResponse": {
            "type": "object",
            "properties": {
                "orderChainId": {"type": "string"},
                "primaryOrderShipment": {"$ref": "#/definitions/http.ShipmentDTO"},
                "reminderShipments": {"type": "array", "items": {"$ref": "#/definitions/http.ShipmentDTO"}}
            }
        },
        "http.StatusDTO": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "description": {"type": "string"},
                "lastUpdate": {"type": "string"}
            }
        },
        "http.RecipientStatusDTO": {
            "type": "object",
            "properties": {
                "destination": {"type": "string"},
                "type": {"type": "string"},
                "status": {"type": "string"},
                "description": {"type": "string"},
                "lastUpdate": {"type": "string"}
            }
        },
        "http.ShipmentResponse": {
            "type": "object",
            "properties": {
                "shipmentId": {"type": "string"},
                "sendersReference": {"type": "string"},
                "orderChainId": {"type": "string"},
                "type": {"type": "string"},
                "status": {"$ref": "#/definitions/http.StatusDTO"},
                "recipients": {"type": "array", "items": {"$ref": "#/definitions/http.RecipientStatusDTO"}},
                "summary": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "http.StatusFeedItemDTO": {
            "type": "object",
            "properties": {
                "sequenceNumber": {"type": "integer"},
                "orderId": {"type": "string"},
                "createdAt": {"type": "string"},
                "shipment": {"$ref": "#/definitions/http.ShipmentResponse"}
            }
        },
        "http.StatusFeedResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/http.StatusFeedItemDTO"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "courier orders API",
	Description:      "Notification order chain intake, delivery manifests and status feed.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
