// Package docs registra la documentación OpenAPI servida en /swagger.
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
        "/registrations": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "registrations"
                ],
                "summary": "Registrar tratamiento o suplemento",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "description": "Registro; fechas YYYY-MM-DD y horarios HH:MM",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/registrations.createRegistrationRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/registrations.createRegistrationResponse"
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            },
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "registrations"
                ],
                "summary": "Listar mis registros",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/registrations.registrationResponse"
                            }
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/registrations/{regID}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "registrations"
                ],
                "summary": "Obtener un registro",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "ID del registro",
                        "name": "regID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/registrations.registrationResponse"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "registrations"
                ],
                "summary": "Borrar un registro",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "ID del registro",
                        "name": "regID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "OK"
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "403": {
                        "description": "forbidden",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/me/doses": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "doses"
                ],
                "summary": "Tomas por día",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Primer día (YYYY-MM-DD)",
                        "name": "from",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Último día inclusive (YYYY-MM-DD)",
                        "name": "to",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "array",
                                "items": {
                                    "$ref": "#/definitions/doses.doseEventResponse"
                                }
                            }
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/me/doses/taken": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "doses"
                ],
                "summary": "Marcar tomas como tomadas",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "description": "IDs de las tomas; at opcional (RFC3339, por defecto ahora)",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/doses.markTakenRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/doses.acceptedResponse"
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "503": {
                        "description": "dispatcher closed",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/me/doses/alarm": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "doses"
                ],
                "summary": "Activar o desactivar la alarma de tomas",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "description": "IDs de las tomas y valor de la alarma",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/doses.toggleAlarmRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/doses.acceptedResponse"
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "503": {
                        "description": "dispatcher closed",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/me/doses/snooze": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "doses"
                ],
                "summary": "Posponer la alarma de tomas",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "description": "IDs de las tomas y minutos (0-720)",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/doses.snoozeRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/doses.acceptedResponse"
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "503": {
                        "description": "dispatcher closed",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/me/adherence": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "doses"
                ],
                "summary": "Historial de adherencia",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Primer día (YYYY-MM-DD)",
                        "name": "from",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Último día inclusive (YYYY-MM-DD)",
                        "name": "to",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/doses.adherenceResponse"
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/me/adherence/export.xlsx": {
            "get": {
                "produces": [
                    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
                ],
                "tags": [
                    "doses"
                ],
                "summary": "Exportar adherencia a Excel",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Primer día (YYYY-MM-DD)",
                        "name": "from",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Último día inclusive (YYYY-MM-DD)",
                        "name": "to",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/me/calendar.ics": {
            "get": {
                "produces": [
                    "text/calendar"
                ],
                "tags": [
                    "doses"
                ],
                "summary": "Feed iCalendar de tomas",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Primer día (YYYY-MM-DD)",
                        "name": "from",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Último día inclusive (YYYY-MM-DD)",
                        "name": "to",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/me/calendar/week": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "calendar"
                ],
                "summary": "Vista semanal del calendario",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Solo en modo dev, ID de usuario para depuración",
                        "name": "X-Debug-User-ID",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Bearer token en producción",
                        "name": "Authorization",
                        "in": "header"
                    },
                    {
                        "type": "string",
                        "description": "Día seleccionado (YYYY-MM-DD). Por defecto hoy",
                        "name": "date",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Hoy según el cliente (YYYY-MM-DD)",
                        "name": "today",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Página absoluta del pager; se ignora si viene date",
                        "name": "page",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/calendar.weekViewResponse"
                        }
                    },
                    "400": {
                        "description": "invalid input",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "internal error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "registrations.createRegistrationRequest": {
            "type": "object",
            "required": [
                "regi_type",
                "medicine_names",
                "dose_count_per_day",
                "intake_times"
            ],
            "properties": {
                "regi_type": {
                    "type": "string"
                },
                "label": {
                    "type": "string"
                },
                "medicine_names": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "dose_count_per_day": {
                    "type": "integer"
                },
                "intake_times": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "start_date": {
                    "type": "string",
                    "example": "2024-01-01"
                },
                "end_date": {
                    "type": "string",
                    "example": "2024-01-03"
                },
                "day_count": {
                    "type": "integer"
                },
                "meal_relation": {
                    "type": "string"
                },
                "memo": {
                    "type": "string"
                },
                "use_alarm": {
                    "type": "boolean"
                }
            }
        },
        "registrations.registrationResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "user_id": {
                    "type": "string"
                },
                "regi_type": {
                    "type": "string"
                },
                "label": {
                    "type": "string"
                },
                "medicine_names": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "dose_count_per_day": {
                    "type": "integer"
                },
                "intake_times": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "start_date": {
                    "type": "string"
                },
                "end_date": {
                    "type": "string"
                },
                "day_count": {
                    "type": "integer"
                },
                "meal_relation": {
                    "type": "string"
                },
                "memo": {
                    "type": "string"
                },
                "use_alarm": {
                    "type": "boolean"
                },
                "issued_at": {
                    "type": "string"
                }
            }
        },
        "registrations.createRegistrationResponse": {
            "type": "object",
            "properties": {
                "registration": {
                    "$ref": "#/definitions/registrations.registrationResponse"
                },
                "event_count": {
                    "type": "integer"
                },
                "rolled_over": {
                    "type": "boolean"
                }
            }
        },
        "doses.doseEventResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "registration_id": {
                    "type": "string"
                },
                "label": {
                    "type": "string"
                },
                "medicine_name": {
                    "type": "string"
                },
                "scheduled_at": {
                    "type": "integer",
                    "description": "epoch millis"
                },
                "meal_relation": {
                    "type": "string"
                },
                "memo": {
                    "type": "string"
                },
                "use_alarm": {
                    "type": "boolean"
                },
                "taken_at": {
                    "type": "string"
                },
                "snoozed_until": {
                    "type": "string"
                }
            }
        },
        "doses.markTakenRequest": {
            "type": "object",
            "required": [
                "event_ids"
            ],
            "properties": {
                "event_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "at": {
                    "type": "string"
                }
            }
        },
        "doses.toggleAlarmRequest": {
            "type": "object",
            "required": [
                "event_ids",
                "enabled"
            ],
            "properties": {
                "event_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "enabled": {
                    "type": "boolean"
                }
            }
        },
        "doses.snoozeRequest": {
            "type": "object",
            "required": [
                "event_ids"
            ],
            "properties": {
                "event_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "minutes": {
                    "type": "integer"
                }
            }
        },
        "doses.acceptedResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "count": {
                    "type": "integer"
                }
            }
        },
        "doses.adherenceResponse": {
            "type": "object",
            "properties": {
                "from": {
                    "type": "string"
                },
                "to": {
                    "type": "string"
                },
                "scheduled": {
                    "type": "integer"
                },
                "taken": {
                    "type": "integer"
                },
                "missed": {
                    "type": "integer"
                },
                "upcoming": {
                    "type": "integer"
                },
                "rate": {
                    "type": "number"
                },
                "days": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "date": {
                                "type": "string"
                            },
                            "scheduled": {
                                "type": "integer"
                            },
                            "taken": {
                                "type": "integer"
                            },
                            "missed": {
                                "type": "integer"
                            },
                            "upcoming": {
                                "type": "integer"
                            },
                            "rate": {
                                "type": "number"
                            }
                        }
                    }
                }
            }
        },
        "calendar.weekViewResponse": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "anchor": {
                    "type": "string"
                },
                "today": {
                    "type": "string"
                },
                "selected": {
                    "type": "string"
                },
                "days": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "date": {
                                "type": "string"
                            },
                            "weekday": {
                                "type": "string"
                            },
                            "total": {
                                "type": "integer"
                            },
                            "taken": {
                                "type": "integer"
                            },
                            "status": {
                                "type": "string"
                            },
                            "today": {
                                "type": "boolean"
                            },
                            "selected": {
                                "type": "boolean"
                            }
                        }
                    }
                },
                "buckets": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "scheduled_at": {
                                "type": "integer"
                            },
                            "time": {
                                "type": "string"
                            },
                            "status": {
                                "type": "string"
                            },
                            "alarm_on": {
                                "type": "boolean"
                            },
                            "event_ids": {
                                "type": "array",
                                "items": {
                                    "type": "string"
                                }
                            },
                            "items": {
                                "type": "array",
                                "items": {
                                    "type": "object",
                                    "properties": {
                                        "id": {
                                            "type": "string"
                                        },
                                        "label": {
                                            "type": "string"
                                        },
                                        "medicine_name": {
                                            "type": "string"
                                        },
                                        "meal_relation": {
                                            "type": "string"
                                        },
                                        "memo": {
                                            "type": "string"
                                        },
                                        "use_alarm": {
                                            "type": "boolean"
                                        },
                                        "taken": {
                                            "type": "boolean"
                                        }
                                    }
                                }
                            }
                        }
                    }
                },
                "empty": {
                    "type": "boolean"
                }
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
	Title:            "MyRhythm API",
	Description:      "Agenda de tomas de medicamentos y suplementos: registros, calendario semanal, recordatorios y adherencia.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
