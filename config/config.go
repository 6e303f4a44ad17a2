package config

// AppName doubles as the Postgres schema name for the app.
const AppName = "splitbook"
