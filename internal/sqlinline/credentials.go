package sqlinline

// Provider API keys managed by cmd/apikey. The fingerprint column lets logs name
// the key in use without printing it.

const QSelectProviderCredential = `--sql 3f0b7a6e-92c4-4d8e-b1a5-6c2e8d9f0a17
select api_key, fingerprint, set_by, rotated_at
from provider_credentials
where provider = $1::text;
`

const QUpsertProviderCredential = `--sql b4d2e6f8-0a1c-4e3b-9d7f-5a8c2e4b6d01
insert into provider_credentials (provider, api_key, fingerprint, set_by, rotated_at)
values ($1::text, $2::text, $3::text, $4::text, now())
on conflict (provider) do update set
    previous_fingerprint = provider_credentials.fingerprint,
    api_key = excluded.api_key,
    fingerprint = excluded.fingerprint,
    set_by = excluded.set_by,
    rotated_at = excluded.rotated_at
returning rotated_at;
`
